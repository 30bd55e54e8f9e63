// Package xml provides a XML codec for replica snapshot documents.
package xml

import (
	"encoding/xml"

	"github.com/zoobzio/replica"
)

// xmlCodec implements replica.Codec for XML.
type xmlCodec struct{}

// New returns a XML codec.
func New() replica.Codec {
	return &xmlCodec{}
}

// ContentType returns the MIME type for XML.
func (c *xmlCodec) ContentType() string {
	return "application/xml"
}

// Marshal encodes v as XML.
func (c *xmlCodec) Marshal(v any) ([]byte, error) {
	return xml.Marshal(v)
}

// Unmarshal decodes XML data into v.
func (c *xmlCodec) Unmarshal(data []byte, v any) error {
	return xml.Unmarshal(data, v)
}
