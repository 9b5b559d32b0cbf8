package header

import "testing"

func sampleChannelHeader() *ChannelHeader {
	return &ChannelHeader{
		RootOff:         65536,
		LastTimeOnDisk:  987654321,
		ActiveBlocks:    10,
		AllocatedBlocks: 12,
		ItemBytes:       8,
		Rows:            1,
		Cols:            1,
		PreTrigger:      0,
		SampleInterval:  100,
		ReuseGen:        3,
		Kind:            5,
		PrevKind:        0,
		Flags:           1,
		PhysChan:        42,
		TitleID:         1,
		UnitsID:         2,
		CommentID:       3,
		IdealRate:       1000.5,
		Scale:           2.5,
		Offset:          -1.25,
		YLow:            -10,
		YHigh:           10,
	}
}

func TestChannelHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := sampleChannelHeader()
	buf := make([]byte, ChannelHeaderSize)
	h.Encode(buf)
	got := DecodeChannelHeader(buf)
	if *got != *h {
		t.Fatalf("got %+v, want %+v", *got, *h)
	}
}

func TestIsReuseMode(t *testing.T) {
	h := &ChannelHeader{ActiveBlocks: 5, AllocatedBlocks: 5}
	if h.IsReuseMode() {
		t.Fatal("want false when equal")
	}
	h.AllocatedBlocks = 6
	if !h.IsReuseMode() {
		t.Fatal("want true when allocated > active")
	}
}
