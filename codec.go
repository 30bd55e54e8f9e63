package replica

// Codec provides content-type aware marshaling of snapshot documents.
// Implementations live in the json, yaml, msgpack, bson and xml submodules.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}

// Encode snapshots v and marshals the document with codec.
func Encode(codec Codec, v Value) ([]byte, error) {
	doc, err := Snapshot(v)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(doc)
}

// Decode unmarshals a document with codec and restores its graph.
func Decode(codec Codec, data []byte) (Value, error) {
	var doc Document
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, newSnapshotError(ErrInvalidSnapshot, -1, "%s: %v", codec.ContentType(), err)
	}
	return Restore(&doc)
}
