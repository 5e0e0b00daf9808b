package frame

import "testing"

func TestNewFrameSizing(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{RGBA, 4 * 4 * 4},
		{RGB, 4 * 4 * 3},
		{YUV420P, 4 * 4 * 3 / 2},
	}

	for _, tt := range tests {
		f := New(4, 4, tt.format, 0)
		if len(f.Data) != tt.want {
			t.Errorf("format %v: len(Data) = %d, want %d", tt.format, len(f.Data), tt.want)
		}
	}
}

func TestRGBToRGBA(t *testing.T) {
	f := &Frame{Width: 1, Height: 2, Format: RGB, Data: []byte{10, 20, 30, 40, 50, 60}}

	out, err := f.ToRGBA()
	if err != nil {
		t.Fatalf("ToRGBA() error = %v", err)
	}

	want := []byte{10, 20, 30, 255, 40, 50, 60, 255}
	if string(out.Data) != string(want) {
		t.Errorf("Data = %v, want %v", out.Data, want)
	}
}

func TestYUV420PToRGBAGray(t *testing.T) {
	width, height := 4, 2
	y := make([]byte, width*height)
	for i := range y {
		y[i] = 128
	}
	u := make([]byte, (width/2)*(height/2))
	v := make([]byte, (width/2)*(height/2))
	for i := range u {
		u[i] = 128
		v[i] = 128
	}

	data := append(append(y, u...), v...)
	f := &Frame{Width: uint32(width), Height: uint32(height), Format: YUV420P, Data: data}

	out, err := f.ToRGBA()
	if err != nil {
		t.Fatalf("ToRGBA() error = %v", err)
	}

	for i := 0; i < width*height; i++ {
		o := i * 4
		if out.Data[o] != 128 || out.Data[o+1] != 128 || out.Data[o+2] != 128 || out.Data[o+3] != 255 {
			t.Fatalf("pixel %d = %v, want (128,128,128,255)", i, out.Data[o:o+4])
		}
	}
}

func TestYUV420PToRGBATooShort(t *testing.T) {
	f := &Frame{Width: 4, Height: 4, Format: YUV420P, Data: []byte{1, 2, 3}}
	if _, err := f.ToRGBA(); err == nil {
		t.Fatal("expected error for truncated YUV420P data")
	}
}

func TestRingBufferEviction(t *testing.T) {
	b := NewRingBuffer(3)
	for i := uint64(1); i <= 5; i++ {
		b.Push(New(1, 1, RGBA, i))
	}

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	latest := b.GetLatest()
	if latest == nil || latest.Timestamp != 5 {
		t.Fatalf("GetLatest().Timestamp = %v, want 5", latest)
	}

	// oldest surviving frame should be timestamp 3 (1 and 2 evicted)
	if got := b.Get(0); got == nil || got.Timestamp != 3 {
		t.Fatalf("Get(0).Timestamp = %v, want 3", got)
	}
}

func TestRingBufferClear(t *testing.T) {
	b := NewRingBuffer(2)
	b.Push(New(1, 1, RGBA, 1))
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("Len() after Clear() = %d, want 0", b.Len())
	}
	if b.GetLatest() != nil {
		t.Fatal("GetLatest() after Clear() should be nil")
	}
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	b := NewRingBuffer(0)
	for i := 0; i < DefaultCapacity+2; i++ {
		b.Push(New(1, 1, RGBA, uint64(i)))
	}
	if b.Len() != DefaultCapacity {
		t.Fatalf("Len() = %d, want %d", b.Len(), DefaultCapacity)
	}
}
