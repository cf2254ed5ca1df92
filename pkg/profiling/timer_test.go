package profiling

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerDisabled(t *testing.T) {
	p := &Profiler{}
	p.Start("query hello.deb").Stop()
	assert.Empty(t, p.Spans())

	var out bytes.Buffer
	p.Summarize(&out)
	assert.Empty(t, out.String())
}

func TestProfilerConcurrentSpans(t *testing.T) {
	p := &Profiler{}
	p.Enable()

	var wg sync.WaitGroup
	for _, name := range []string{"query a.deb", "query b.deb", "query c.deb"} {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := p.Start(name)
			time.Sleep(5 * time.Millisecond)
			s.Stop()
			s.Stop()
		}()
	}
	wg.Wait()

	spans := p.Spans()
	require.Len(t, spans, 3)
	for i := 1; i < len(spans); i++ {
		assert.False(t, spans[i].Start.Before(spans[i-1].Start))
	}
	for _, s := range spans {
		assert.GreaterOrEqual(t, s.Duration, 5*time.Millisecond)
	}

	var out bytes.Buffer
	p.Summarize(&out)
	assert.Contains(t, out.String(), "Timing Profile")
	assert.Contains(t, out.String(), "query b.deb")
	assert.Contains(t, out.String(), "total ")
}
