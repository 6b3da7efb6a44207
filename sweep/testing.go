package sweep

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/castmod/castmod/automod/engine"
)

// StaticSource serves fixed pages of casts, optionally failing once a given page is reached.
type StaticSource struct {
	lk    sync.Mutex
	Pages [][]*engine.Cast
	// index of the page which fails instead of being served; negative never fails
	FailAt  int
	Err     error
	Fetched int
}

var _ Source = (*StaticSource)(nil)

// StaticSourceEpoch is the timestamp of the newest cast built by NewStaticSource. Each later cast is a minute older.
var StaticSourceEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// NewStaticSource builds count casts with text from textFn, newest first, split into pages of pageSize.
func NewStaticSource(count, pageSize int, textFn func(i int) string) *StaticSource {
	src := &StaticSource{FailAt: -1}
	for start := 0; start < count; start += pageSize {
		var page []*engine.Cast
		for i := start; i < count && i < start+pageSize; i++ {
			cast := engine.CastFixture(fmt.Sprintf("0x%05d", i), textFn(i), int64(i%50)+1)
			cast.Timestamp = StaticSourceEpoch.Add(-time.Duration(i) * time.Minute).Format(time.RFC3339)
			page = append(page, cast)
		}
		src.Pages = append(src.Pages, page)
	}
	return src
}

func (s *StaticSource) PageChannelCasts(ctx context.Context, channelID string) iter.Seq2[[]*engine.Cast, error] {
	return func(yield func([]*engine.Cast, error) bool) {
		for i, page := range s.Pages {
			s.lk.Lock()
			s.Fetched++
			s.lk.Unlock()
			if i == s.FailAt {
				err := s.Err
				if err == nil {
					err = fmt.Errorf("page %d unavailable", i)
				}
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}

// FetchCount is the number of pages requested so far.
func (s *StaticSource) FetchCount() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.Fetched
}
