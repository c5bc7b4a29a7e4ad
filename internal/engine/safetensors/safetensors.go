// Package safetensors reads and writes the safetensors tensor container used
// for scaler and linear model weights.
//
// Layout: 8-byte little-endian header length, a JSON header mapping tensor
// names to {dtype, shape, data_offsets}, then the raw little-endian data.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Tensor is a dense tensor with values widened to float64.
type Tensor struct {
	Shape []int
	Data  []float64
}

// Len returns the number of elements implied by the shape.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// ReadFile loads every tensor in a safetensors file.
func ReadFile(path string) (map[string]Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: %w", err)
	}
	tensors, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("safetensors: %s: %w", path, err)
	}
	return tensors, nil
}

// Decode parses a safetensors blob. Supported dtypes: F32, F64, I32, I64.
func Decode(data []byte) (map[string]Tensor, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("file too small: %d bytes", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerLen {
		return nil, fmt.Errorf("header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	body := data[8+headerLen:]
	out := make(map[string]Tensor, len(header))
	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}
		var meta tensorMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("tensor %q: failed to parse metadata: %w", name, err)
		}
		t, err := decodeTensor(meta, body)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

func decodeTensor(meta tensorMeta, body []byte) (Tensor, error) {
	t := Tensor{Shape: meta.Shape}
	n := t.Len()

	var width int
	switch meta.Dtype {
	case "F32", "I32":
		width = 4
	case "F64", "I64":
		width = 8
	default:
		return Tensor{}, fmt.Errorf("unsupported dtype %s", meta.Dtype)
	}

	start, end := meta.DataOffsets[0], meta.DataOffsets[1]
	if start < 0 || end < start || end > len(body) {
		return Tensor{}, fmt.Errorf("data range [%d:%d] exceeds body size %d", start, end, len(body))
	}
	if end-start != n*width {
		return Tensor{}, fmt.Errorf("data size %d doesn't match shape %v", end-start, meta.Shape)
	}

	raw := body[start:end]
	t.Data = make([]float64, n)
	for i := range t.Data {
		b := raw[i*width : (i+1)*width]
		switch meta.Dtype {
		case "F32":
			t.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case "F64":
			t.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		case "I32":
			t.Data[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		case "I64":
			t.Data[i] = float64(int64(binary.LittleEndian.Uint64(b)))
		}
	}
	return t, nil
}

// Encode serializes tensors as F64 in name order.
func Encode(tensors map[string]Tensor) ([]byte, error) {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorMeta, len(names))
	var body bytes.Buffer
	for _, name := range names {
		t := tensors[name]
		if t.Len() != len(t.Data) {
			return nil, fmt.Errorf("safetensors: tensor %q: shape %v holds %d values, got %d",
				name, t.Shape, t.Len(), len(t.Data))
		}
		start := body.Len()
		var buf [8]byte
		for _, v := range t.Data {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			body.Write(buf[:])
		}
		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		header[name] = tensorMeta{Dtype: "F64", Shape: shape, DataOffsets: [2]int{start, body.Len()}}
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: marshal header: %w", err)
	}

	out := make([]byte, 8, 8+len(hdr)+body.Len())
	binary.LittleEndian.PutUint64(out, uint64(len(hdr)))
	out = append(out, hdr...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// WriteFile encodes tensors and writes them to path.
func WriteFile(path string, tensors map[string]Tensor) error {
	data, err := Encode(tensors)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("safetensors: %w", err)
	}
	return nil
}
