package rdtproto

import "testing"

func TestMakeDataValid(t *testing.T) {
	p := MakeData(3, []byte("hello"))
	if !p.IsValid() {
		t.Fatalf("MakeData result should be valid: %+v", p)
	}
	if p.SeqNum != 3 || p.AckNum != 0 {
		t.Errorf("unexpected seq/ack: %+v", p)
	}
}

func TestMakeDataTruncatesPayload(t *testing.T) {
	long := make([]byte, MaxPayload+10)
	for i := range long {
		long[i] = 'a'
	}
	p := MakeData(1, long)
	if len(p.Payload) != MaxPayload {
		t.Fatalf("expected payload truncated to %d bytes, got %d", MaxPayload, len(p.Payload))
	}
	if !p.IsValid() {
		t.Fatalf("truncated packet should still be valid")
	}
}

func TestMakeAckValid(t *testing.T) {
	p := MakeAck(7)
	if !p.IsValid() {
		t.Fatalf("MakeAck result should be valid: %+v", p)
	}
	if len(p.Payload) != 0 {
		t.Errorf("ack packet should carry no payload")
	}
}

func TestCorruptInvalidatesChecksum(t *testing.T) {
	p := MakeData(5, []byte("xyz"))
	c := p.Corrupt()
	if c.IsValid() {
		t.Fatalf("corrupted packet should be invalid")
	}
	if !p.IsValid() {
		t.Fatalf("original packet should remain valid after Corrupt")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := MakeData(1, []byte("abc"))
	c := p.Clone()
	c.Payload[0] = 'z'
	if p.Payload[0] == 'z' {
		t.Fatalf("mutating clone payload mutated original")
	}
}
