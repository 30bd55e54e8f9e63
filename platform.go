package replica

import "fmt"

type blobSlot struct {
	data []byte
	mime string
}

// NewBlob creates an immutable binary blob holding a copy of data.
func NewBlob(data []byte, mime string) *Object {
	return newObject(BlobPrototype, &blobSlot{data: append([]byte(nil), data...), mime: mime})
}

// Blob returns the contents and media type of a blob.
func (o *Object) Blob() (data []byte, mime string, ok bool) {
	b, isBlob := o.slot.(*blobSlot)
	if !isBlob {
		return nil, "", false
	}
	return b.data, b.mime, true
}

// slice copies a byte range of a blob, the blob duplication primitive.
func (b *blobSlot) slice(start, end int) *blobSlot {
	if start < 0 {
		start = 0
	}
	if end > len(b.data) {
		end = len(b.data)
	}
	if end < start {
		end = start
	}
	return &blobSlot{data: append([]byte(nil), b.data[start:end]...), mime: b.mime}
}

type exceptionSlot struct {
	name    string
	message string
}

var exceptionCodes = map[string]int{
	"IndexSizeError":           1,
	"HierarchyRequestError":    3,
	"WrongDocumentError":       4,
	"InvalidCharacterError":    5,
	"NoModificationAllowedErr": 7,
	"NotFoundError":            8,
	"NotSupportedError":        9,
	"InvalidStateError":        11,
	"SyntaxError":              12,
	"InvalidModificationError": 13,
	"NamespaceError":           14,
	"InvalidAccessError":       15,
	"TypeMismatchError":        17,
	"SecurityError":            18,
	"NetworkError":             19,
	"AbortError":               20,
	"URLMismatchError":         21,
	"QuotaExceededError":       22,
	"TimeoutError":             23,
	"InvalidNodeTypeError":     24,
	"DataCloneError":           25,
}

// NewException creates a structured exception. An empty name means "Error".
func NewException(message, name string) *Object {
	o := newException(message, name)
	defineHidden(o, "stack", captureStack(o.slot.(*exceptionSlot).name, message))
	return o
}

func newException(message, name string) *Object {
	if name == "" {
		name = "Error"
	}
	return newObject(ExceptionPrototype, &exceptionSlot{name: name, message: message})
}

// Exception returns the name, message and legacy code of an exception.
func (o *Object) Exception() (name, message string, code int, ok bool) {
	e, isException := o.slot.(*exceptionSlot)
	if !isException {
		return "", "", 0, false
	}
	return e.name, e.message, exceptionCodes[e.name], true
}

type pointSlot struct {
	x, y, z, w float64
}

// NewPoint creates a geometry point.
func NewPoint(x, y, z, w float64) *Object {
	return newObject(PointPrototype, &pointSlot{x: x, y: y, z: z, w: w})
}

// Point returns the components of a point.
func (o *Object) Point() (x, y, z, w float64, ok bool) {
	p, isPoint := o.slot.(*pointSlot)
	if !isPoint {
		return 0, 0, 0, 0, false
	}
	return p.x, p.y, p.z, p.w, true
}

type matrixSlot struct {
	m    [16]float64
	is2D bool
}

// NewMatrix2D creates a 2D affine matrix [a c e; b d f].
func NewMatrix2D(a, b, c, d, e, f float64) *Object {
	m := identityMatrix()
	m[0], m[1], m[4], m[5], m[12], m[13] = a, b, c, d, e, f
	return newObject(MatrixPrototype, &matrixSlot{m: m, is2D: true})
}

// NewMatrix3D creates a 4x4 matrix from 16 components, m11 through m44.
func NewMatrix3D(m [16]float64) *Object {
	return newObject(MatrixPrototype, &matrixSlot{m: m})
}

func identityMatrix() [16]float64 {
	return [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// Matrix returns the 16 components and the 2D discriminant of a matrix.
func (o *Object) Matrix() (m [16]float64, is2D, ok bool) {
	s, isMatrix := o.slot.(*matrixSlot)
	if !isMatrix {
		return m, false, false
	}
	return s.m, s.is2D, true
}

type rectSlot struct {
	x, y, width, height float64
}

// NewRect creates a geometry rectangle.
func NewRect(x, y, width, height float64) *Object {
	return newObject(RectPrototype, &rectSlot{x: x, y: y, width: width, height: height})
}

// Rect returns the origin and size of a rectangle.
func (o *Object) Rect() (x, y, width, height float64, ok bool) {
	r, isRect := o.slot.(*rectSlot)
	if !isRect {
		return 0, 0, 0, 0, false
	}
	return r.x, r.y, r.width, r.height, true
}

type quadSlot struct {
	points [4]*Object
}

// NewQuad creates a quadrilateral from four points. Nil points default to the origin.
func NewQuad(p1, p2, p3, p4 *Object) (*Object, error) {
	q := &quadSlot{points: [4]*Object{p1, p2, p3, p4}}
	for i, p := range q.points {
		if p == nil {
			q.points[i] = NewPoint(0, 0, 0, 1)
			continue
		}
		if _, ok := p.slot.(*pointSlot); !ok {
			return nil, fmt.Errorf("quad corner %d is not a point", i+1)
		}
	}
	return newObject(QuadPrototype, q), nil
}

// Quad returns the four corner points of a quadrilateral.
func (o *Object) Quad() ([4]*Object, bool) {
	q, ok := o.slot.(*quadSlot)
	if !ok {
		return [4]*Object{}, false
	}
	return q.points, true
}

type imageDataSlot struct {
	width      int
	height     int
	colorSpace string
	data       *Object
}

// NewImageData creates a width x height RGBA pixel grid.
func NewImageData(width, height int, colorSpace string) (*Object, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("image data size %dx%d must be positive", width, height)
	}
	if colorSpace == "" {
		colorSpace = "srgb"
	}
	pixels, err := NewTypedArray(Uint8Clamped, nil, 0, width*height*4)
	if err != nil {
		return nil, err
	}
	return newObject(ImageDataPrototype, &imageDataSlot{width: width, height: height, colorSpace: colorSpace, data: pixels}), nil
}

// ImageData returns the dimensions, color space and pixel array of an image.
func (o *Object) ImageData() (width, height int, colorSpace string, pixels *Object, ok bool) {
	s, isImage := o.slot.(*imageDataSlot)
	if !isImage {
		return 0, 0, "", nil, false
	}
	return s.width, s.height, s.colorSpace, s.data, true
}
