package container

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cfadata/cfa/internal/manifest"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(manifest.FormatModernV5)
	c.Root.Attrs["Conventions"] = "CF-1.8 CFA-0.5"
	c.Root.Dimensions["y"] = Dim{Length: 10}
	data, err := EncodeElems(manifest.Float32, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if err != nil {
		t.Fatal(err)
	}
	c.Root.PutVariable(&Var{
		Name:     "temp",
		ElemType: manifest.Float32,
		Dims:     []string{"y"},
		Attrs:    map[string]string{"units": "K"},
		Shape:    []int64{10},
		Data:     data,
	})

	sub := NewGroup("cfa_temp")
	sub.PutVariable(&Var{Name: "shape", ElemType: manifest.Int64, Shape: []int64{1}, Data: func() []byte {
		b, _ := EncodeElems(manifest.Int64, []int64{10})
		return b
	}()})
	c.Root.PutGroup(sub)

	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	got, err := Decode("test.nc", &buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Format != manifest.FormatModernV5 {
		t.Fatalf("format = %v, want FormatModernV5", got.Format)
	}
	if got.Root.Attrs["Conventions"] != "CF-1.8 CFA-0.5" {
		t.Fatalf("Conventions attr lost in round trip")
	}
	v := got.Root.Variables["temp"]
	if v == nil {
		t.Fatal("variable temp missing after round trip")
	}
	vals := DecodeFloat32s(v.Data, 10)
	want := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if diff := cmp.Diff(want, vals); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got.Root.Groups["cfa_temp"]; !ok {
		t.Fatal("sub-container cfa_temp missing after round trip")
	}
}

func TestSniffFormats(t *testing.T) {
	cases := []struct {
		magic []byte
		want  manifest.ContainerFormat
	}{
		{[]byte{'C', 'D', 'F', 1, 0, 0}, manifest.FormatClassic},
		{[]byte{'C', 'D', 'F', 2, 0, 0}, manifest.FormatClassic64Offset},
		{[]byte{'C', 'D', 'F', 5, 0, 0}, manifest.FormatClassic64Data},
		{[]byte{0x0e, 0x03, 0x13, 0x01, 0, 0}, manifest.FormatModernV4},
		{[]byte{0x89, 'H', 'D', 'F', 0x0d, 0x0a}, manifest.FormatModernV5},
	}
	for _, c := range cases {
		got, err := Sniff("test", c.magic)
		if err != nil {
			t.Fatalf("Sniff(%v): %v", c.magic, err)
		}
		if got != c.want {
			t.Errorf("Sniff(%v) = %v, want %v", c.magic, got, c.want)
		}
	}
	if _, err := Sniff("test", []byte{'X', 'X', 'X', 'X'}); err == nil {
		t.Fatal("expected UnknownFormat error for unrecognized magic")
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := New(manifest.FormatModernV5)
	data, _ := EncodeElems(manifest.Int32, []int32{1, 2, 3})
	c.Root.PutVariable(&Var{Name: "v", ElemType: manifest.Int32, Shape: []int64{3}, Data: data})

	cp := c.Clone()
	cp.Root.Variables["v"].Data[0] = 0xFF

	if c.Root.Variables["v"].Data[0] == 0xFF {
		t.Fatal("Clone is not deep: mutating clone affected original")
	}
}
