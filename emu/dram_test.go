package emu

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestDramRoundTrip(t *testing.T) {
	d := NewDram(64)

	if err := d.Write8(0, 0xAB); err != nil {
		t.Fatalf("Write8: %v", err)
	}
	v8, err := d.Read8(0)
	assert(t, err == nil, "Read8 err: %v", err)
	assert(t, v8 == 0xAB, "Read8 = 0x%x, want 0xAB", v8)

	if err := d.Write16(8, 0x1234); err != nil {
		t.Fatalf("Write16: %v", err)
	}
	v16, err := d.Read16(8)
	assert(t, err == nil, "Read16 err: %v", err)
	assert(t, v16 == 0x1234, "Read16 = 0x%x, want 0x1234", v16)

	if err := d.Write32(16, 0xDEADBEEF); err != nil {
		t.Fatalf("Write32: %v", err)
	}
	v32, err := d.Read32(16)
	assert(t, err == nil, "Read32 err: %v", err)
	assert(t, v32 == 0xDEADBEEF, "Read32 = 0x%x, want 0xDEADBEEF", v32)

	if err := d.Write64(24, 0x0123456789ABCDEF); err != nil {
		t.Fatalf("Write64: %v", err)
	}
	v64, err := d.Read64(24)
	assert(t, err == nil, "Read64 err: %v", err)
	assert(t, v64 == 0x0123456789ABCDEF, "Read64 = 0x%x, want 0x0123456789ABCDEF", v64)
}

func TestDramUnalignedAccess(t *testing.T) {
	d := NewDram(16)
	if err := d.Write32(1, 0x11223344); err != nil {
		t.Fatalf("Write32 at unaligned addr: %v", err)
	}
	v, err := d.Read32(1)
	assert(t, err == nil, "Read32 err: %v", err)
	assert(t, v == 0x11223344, "Read32 = 0x%x, want 0x11223344", v)
}

func TestDramOutOfBounds(t *testing.T) {
	d := NewDram(8)

	_, err := d.Read64(4)
	assert(t, err != nil, "Read64 past end should fail")

	err = d.Write8(8, 1)
	assert(t, err != nil, "Write8 at len(dram) should fail")

	_, err = d.Slice(0, 16)
	assert(t, err != nil, "Slice past end should fail")
}

func TestDramLoadAtAndLen(t *testing.T) {
	d := NewDram(32)
	assert(t, d.Len() == 32, "Len() = %d, want 32", d.Len())

	if err := d.LoadAt(4, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("LoadAt: %v", err)
	}
	got, err := d.Slice(4, 4)
	assert(t, err == nil, "Slice err: %v", err)
	assert(t, got[0] == 1 && got[3] == 4, "LoadAt did not place bytes correctly: %v", got)

	err = d.LoadAt(30, []byte{1, 2, 3})
	assert(t, err != nil, "LoadAt exceeding bounds should fail")
}
