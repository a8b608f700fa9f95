package marketdata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"marubot/internal/domain"
)

// TickRecord is the Parquet schema for archived ticks.
type TickRecord struct {
	Code       string  `parquet:"code"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price      float64 `parquet:"price"`
	Volume     int64   `parquet:"volume"`
	ChangeRate float64 `parquet:"change_rate"`
}

// Archiver buffers ticks in memory and flushes them to Parquet files, one
// file per instrument per session date. Flushes merge with existing files,
// deduplicating by (code, timestamp), so restarts never lose or double
// archived data.
type Archiver struct {
	DataDir string

	mu  sync.Mutex
	buf map[archiveKey][]TickRecord
}

type archiveKey struct {
	code string
	date string // YYYYMMDD
}

// NewArchiver creates an Archiver rooted at dataDir.
func NewArchiver(dataDir string) *Archiver {
	return &Archiver{
		DataDir: dataDir,
		buf:     make(map[archiveKey][]TickRecord),
	}
}

// Record buffers a tick for the next Flush.
func (a *Archiver) Record(sample domain.PriceSample) {
	k := archiveKey{code: sample.Code, date: sample.Timestamp.Format("20060102")}
	rec := TickRecord{
		Code:       sample.Code,
		Timestamp:  sample.Timestamp.UnixMilli(),
		Price:      sample.Price,
		Volume:     sample.Volume,
		ChangeRate: sample.ChangeRate,
	}
	a.mu.Lock()
	a.buf[k] = append(a.buf[k], rec)
	a.mu.Unlock()
}

// Flush writes all buffered ticks to disk and clears the buffer. Buffered
// ticks that fail to write stay buffered for the next attempt.
func (a *Archiver) Flush() error {
	a.mu.Lock()
	pending := a.buf
	a.buf = make(map[archiveKey][]TickRecord)
	a.mu.Unlock()

	for k, records := range pending {
		path := a.tickPath(k.code, k.date)

		existing, _ := readParquetFile[TickRecord](path)
		merged := mergeTickRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			a.mu.Lock()
			a.buf[k] = append(records, a.buf[k]...)
			a.mu.Unlock()
			return fmt.Errorf("writing ticks for %s/%s: %w", k.code, k.date, err)
		}
	}
	return nil
}

// Run flushes on the given interval until the context signals done, then
// performs a final flush. Intended to run on its own goroutine.
func (a *Archiver) Run(done <-chan struct{}, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return a.Flush()
		case <-ticker.C:
			if err := a.Flush(); err != nil {
				return err
			}
		}
	}
}

// ReadTicks reads the archived ticks for code on the given date (YYYYMMDD),
// sorted by timestamp. A missing file reads as empty.
func (a *Archiver) ReadTicks(code, date string) ([]domain.PriceSample, error) {
	records, err := readParquetFile[TickRecord](a.tickPath(code, date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	samples := make([]domain.PriceSample, 0, len(records))
	for _, r := range records {
		samples = append(samples, domain.PriceSample{
			Code:       r.Code,
			Price:      r.Price,
			Volume:     r.Volume,
			ChangeRate: r.ChangeRate,
			Timestamp:  time.UnixMilli(r.Timestamp),
		})
	}
	return samples, nil
}

// tickPath returns the archive path for one instrument-day.
// Layout: <dataDir>/ticks/<CODE>/<YYYYMMDD>.parquet
func (a *Archiver) tickPath(code, date string) string {
	return filepath.Join(a.DataDir, "ticks", code, date+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeTickRecords deduplicates tick records by (code, timestamp),
// preferring new records over existing ones. Results are sorted by
// timestamp.
func mergeTickRecords(existing, incoming []TickRecord) []TickRecord {
	type key struct {
		code string
		ts   int64
	}
	seen := make(map[key]TickRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Code, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Code, r.Timestamp}] = r
	}

	merged := make([]TickRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
