package container

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/klauspost/pgzip"
	"github.com/orcaman/writerseeker"

	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/manifest"
)

type dimWire struct {
	Length int64
	Unlimited bool
}

type varWire struct {
	Name string
	ElemType string
	Dims []string
	Attrs map[string]string
	Shape []int64
	DataLen int64
}

type groupWire struct {
	Name string
	Attrs map[string]string
	Dimensions map[string]dimWire
	Variables []varWire
	SubGroups []string
}

// Encode writes the container's magic bytes, a compression flag byte,
// and its recursively-serialized group tree to w. When c.Compressed is
// set the group tree is gzip-framed (via pgzip, which parallelizes the
// write for the larger subarray bodies this store produces); the magic
// bytes themselves are never compressed, so Sniff keeps working on a
// raw prefix read.
func (c *Container) Encode(w io.Writer) error {
	magic, err := MagicBytes(c.Format)
	if err != nil {
		return err
	}
	if _, err := w.Write(magic); err != nil {
		return err
	}
	if !c.Compressed {
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
		return encodeGroup(w, c.Root)
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	gw := pgzip.NewWriter(w)
	if err := encodeGroup(gw, c.Root); err != nil {
		return err
	}
	return gw.Close()
}

func encodeGroup(w io.Writer, g *Group) error {
	wire := groupWire{
		Name: g.Name,
		Attrs: g.Attrs,
		Dimensions: map[string]dimWire{},
		SubGroups: g.GroupNames(),
	}
	for name, d := range g.Dimensions {
		wire.Dimensions[name] = dimWire{Length: d.Length, Unlimited: d.Unlimited}
	}
	for _, name := range g.VariableNames() {
		v := g.Variables[name]
		wire.Variables = append(wire.Variables, varWire{
			Name: v.Name,
			ElemType: string(v.ElemType),
			Dims: v.Dims,
			Attrs: v.Attrs,
			Shape: v.Shape,
			DataLen: int64(len(v.Data)),
		})
	}

	header, err := json.Marshal(wire)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(header))); err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, name := range g.VariableNames() {
		if _, err := w.Write(g.Variables[name].Data); err != nil {
			return err
		}
	}
	for _, name := range g.GroupNames() {
		if err := encodeGroup(w, g.Groups[name]); err != nil {
			return err
		}
	}
	return nil
}

// magicLen returns how many bytes MagicBytes actually writes for
// format: 4 for every classic/v4 tag, 6 for v5's HDF5-style magic
// (the trailing 0x0d, 0x0a). Sniff itself only ever inspects the
// first 4, so Decode must still consume the rest before the body.
func magicLen(format manifest.ContainerFormat) int {
	if format == manifest.FormatModernV5 {
		return 6
	}
	return 4
}

// Decode reads a container previously written by Encode, validating
// the magic bytes against the recognised format table.
func Decode(locator string, r io.Reader) (*Container, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, cfaerr.ManifestParse(locator, "reading container magic bytes", err)
	}
	format, err := Sniff(locator, head[:])
	if err != nil {
		return nil, err
	}
	if rest := magicLen(format) - len(head); rest > 0 {
		tail := make([]byte, rest)
		if _, err := io.ReadFull(r, tail); err != nil {
			return nil, cfaerr.ManifestParse(locator, "reading container magic bytes", err)
		}
	}

	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		return nil, cfaerr.ManifestParse(locator, "reading container compression flag", err)
	}
	compressed := flag[0] == 1
	body := r
	if compressed {
		gr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, cfaerr.ManifestParse(locator, "opening gzip-framed container body", err)
		}
		defer gr.Close()
		body = gr
	}

	root, err := decodeGroup(locator, body)
	if err != nil {
		return nil, err
	}
	return &Container{Format: format, Root: root, Compressed: compressed}, nil
}

func decodeGroup(locator string, r io.Reader) (*Group, error) {
	var headerLen uint32
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, cfaerr.ManifestParse(locator, "reading group header length", err)
	}
	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, cfaerr.ManifestParse(locator, "reading group header", err)
	}
	var wire groupWire
	if err := json.Unmarshal(headerBuf, &wire); err != nil {
		return nil, cfaerr.ManifestParse(locator, "parsing group header", err)
	}

	g := NewGroup(wire.Name)
	for k, v := range wire.Attrs {
		g.Attrs[k] = v
	}
	for name, d := range wire.Dimensions {
		g.Dimensions[name] = Dim{Length: d.Length, Unlimited: d.Unlimited}
	}
	for _, vw := range wire.Variables {
		data := make([]byte, vw.DataLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, cfaerr.ManifestParse(locator, fmt.Sprintf("reading data for variable %q", vw.Name), err)
		}
		g.PutVariable(&Var{
			Name: vw.Name,
			ElemType: manifest.ElemType(vw.ElemType),
			Dims: vw.Dims,
			Attrs: vw.Attrs,
			Shape: vw.Shape,
			Data: data,
		})
	}
	for range wire.SubGroups {
		sub, err := decodeGroup(locator, r)
		if err != nil {
			return nil, err
		}
		g.PutGroup(sub)
	}
	return g, nil
}

// EncodeToBytes is a convenience wrapper returning the encoded bytes
// directly, for backends that take a full buffer rather than a writer.
// It builds the buffer through a writerseeker.WriterSeeker rather than
// bytes.Buffer; this is the only use of writerseeker in the module (the
// object-store backend builds its request bodies with bytes.NewReader).
func (c *Container) EncodeToBytes() ([]byte, error) {
	var ws writerseeker.WriterSeeker
	if err := c.Encode(&ws); err != nil {
		return nil, err
	}
	return ioutil.ReadAll(ws.Reader())
}
