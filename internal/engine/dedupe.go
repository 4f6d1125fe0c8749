package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sync"
	"time"

	"hrvguard/internal/model"
)

type DedupeCache struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewDedupeCache() *DedupeCache {
	return &DedupeCache{items: make(map[string]time.Time)}
}

func (d *DedupeCache) Seen(key string, now time.Time, ttl time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ts, ok := d.items[key]; ok {
		if now.Sub(ts) <= ttl {
			return true
		}
	}
	d.items[key] = now
	if len(d.items) > 10000 {
		d.compact(now, ttl)
	}
	return false
}

func (d *DedupeCache) compact(now time.Time, ttl time.Duration) {
	for k, ts := range d.items {
		if now.Sub(ts) > ttl {
			delete(d.items, k)
		}
	}
}

// hashJob fingerprints the analysable content of a job; Source is ignored
// so the same recording arriving over two transports counts once.
func hashJob(job model.Job, channel int) string {
	h := sha256.New()
	h.Write([]byte(job.RecordID))
	writeInt(h, int64(channel))
	writeFloat(h, job.SamplingRate)
	writeFloat(h, job.ToleranceSec)
	writeInt(h, int64(len(job.Peaks)))
	for _, p := range job.Peaks {
		writeInt(h, int64(p))
	}
	writeInt(h, int64(len(job.Annotations)))
	for _, a := range job.Annotations {
		writeInt(h, int64(a.Sample))
		h.Write([]byte(a.Symbol))
	}
	if len(job.Peaks) == 0 && channel >= 0 && channel < len(job.Signals) {
		for _, v := range job.Signals[channel] {
			writeFloat(h, v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeInt(h hash.Hash, v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

func writeFloat(h hash.Hash, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	h.Write(buf[:])
}
