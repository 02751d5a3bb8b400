package fec

import "testing"

func TestEncodeDecodeRecoversLostShard(t *testing.T) {
	config := &Config{DataShards: 4, ParityShards: 2}

	encoder, err := NewEncoder(config)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	decoder, err := NewDecoder(config)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	testData := [][]byte{
		[]byte("packet1"),
		[]byte("packet2"),
		[]byte("packet3"),
		[]byte("packet4"),
	}

	var groupID uint64
	var parityShards [][]byte
	for _, data := range testData {
		gid, parity, err := encoder.AddData(data)
		if err != nil {
			t.Fatalf("AddData: %v", err)
		}
		if parity != nil {
			groupID, parityShards = gid, parity
		}
	}
	if parityShards == nil {
		t.Fatal("expected parity shards once the group filled up")
	}
	if len(parityShards) != config.ParityShards {
		t.Fatalf("expected %d parity shards, got %d", config.ParityShards, len(parityShards))
	}

	// Simulate losing packet1 (index 0) and packet3 (index 2): only feed
	// the decoder packet2 (index 1) and packet4 (index 3) plus all parity
	// shards.
	if _, err := decoder.AddShard(groupID, 1, testData[1], false); err != nil {
		t.Fatalf("AddShard data: %v", err)
	}
	if _, err := decoder.AddShard(groupID, 3, testData[3], false); err != nil {
		t.Fatalf("AddShard data: %v", err)
	}

	var recovered [][]byte
	for i, parity := range parityShards {
		rec, err := decoder.AddShard(groupID, i, parity, true)
		if err != nil {
			t.Fatalf("AddShard parity: %v", err)
		}
		if rec != nil {
			recovered = rec
		}
	}

	if recovered == nil {
		t.Fatal("expected reconstruction once dataShards worth of shards arrived")
	}
	if string(recovered[0]) != "packet1" {
		t.Errorf("expected packet1 reconstructed, got %q", recovered[0])
	}
	if string(recovered[2]) != "packet3" {
		t.Errorf("expected packet3 reconstructed, got %q", recovered[2])
	}

	totalRecovered, failed := decoder.Statistics()
	if totalRecovered == 0 {
		t.Errorf("expected totalRecovered > 0")
	}
	if failed != 0 {
		t.Errorf("expected no failed recoveries, got %d", failed)
	}
}

func TestNewEncoderRejectsBadGeometry(t *testing.T) {
	if _, err := NewEncoder(&Config{DataShards: 0, ParityShards: 1}); err == nil {
		t.Errorf("expected error for zero data shards")
	}
	if _, err := NewEncoder(&Config{DataShards: 4, ParityShards: -1}); err == nil {
		t.Errorf("expected error for negative parity shards")
	}
}
