package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/variant-lollipop-server/internal/cache"
	"github.com/variant-lollipop-server/internal/domain"
	"github.com/variant-lollipop-server/internal/loader"
	"github.com/variant-lollipop-server/pkg/external"
	"github.com/variant-lollipop-server/pkg/lollipop"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func navTrack() *lollipop.Track {
	return &lollipop.Track{
		Name: "navigation",
		Type: lollipop.TrackPositionBar,
		View: &lollipop.TrackView{Height: 20, ScaleHeight: 20},
	}
}

// clusterTrack holds eight variants on one position plus a lone one at the
// far end of the domain.
func clusterTrack() *lollipop.Track {
	var variants []lollipop.Variant
	for i := 1; i <= 8; i++ {
		variants = append(variants, lollipop.Variant{ID: fmt.Sprintf("v%d", i), Start: 100})
	}
	variants = append(variants, lollipop.Variant{ID: "v9", Start: 900})
	return &lollipop.Track{
		Name:     "variants",
		Type:     lollipop.TrackVariants,
		View:     &lollipop.TrackView{VariantAreaHeight: 100, ScaleHeight: 20, CircleSize: 10},
		Variants: variants,
	}
}

func request() *domain.LayoutRequest {
	return &domain.LayoutRequest{Tracks: []*lollipop.Track{navTrack(), clusterTrack()}}
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchVariants(ctx context.Context, gene string) ([]lollipop.Variant, error) {
	args := m.Called(ctx, gene)
	variants, _ := args.Get(0).([]lollipop.Variant)
	return variants, args.Error(1)
}

func newLayoutService(t *testing.T, source domain.VariantSource, withCache bool) *LayoutService {
	t.Helper()
	logger := quietLogger()
	var layoutCache domain.LayoutCache
	if withCache {
		c, err := cache.NewWithClient(16, time.Minute, nil, logger)
		require.NoError(t, err)
		layoutCache = c
	}
	return NewLayoutService(lollipop.DefaultConfig(), layoutCache, time.Minute, NewVariantProvider(source, logger), logger)
}

func TestLayoutService_ComputeLayout(t *testing.T) {
	svc := newLayoutService(t, nil, false)

	result, err := svc.ComputeLayout(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 1000.0, result.Width)
	assert.Equal(t, lollipop.Range{0, 1000}, result.ViewRange)
	assert.Equal(t, lollipop.Range{100, 900}, result.ProteinDomain)
	assert.Equal(t, lollipop.StateIdle, result.State)
	assert.Nil(t, result.Exploded)
	assert.False(t, result.Cached)

	require.Len(t, result.Layouts, 2)
	variants := result.Layouts[1]
	assert.Equal(t, "variants", variants.Track)
	require.Len(t, variants.Nodes, 2)
	assert.Equal(t, "v1-v8", variants.Nodes[0].ID)
	assert.Equal(t, 8, variants.Nodes[0].Count())
	assert.Equal(t, "v9", variants.Nodes[1].ID)
}

func TestLayoutService_ViewAndExplode(t *testing.T) {
	svc := newLayoutService(t, nil, false)
	ctx := context.Background()

	t.Run("protein range", func(t *testing.T) {
		req := request()
		req.ProteinRange = &lollipop.Range{500, 900}
		result, err := svc.ComputeLayout(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, lollipop.Range{500, 900}, result.ViewProteinRange)
		require.Len(t, result.Layouts[1].Nodes, 1)
		assert.Equal(t, "v9", result.Layouts[1].Nodes[0].ID)
	})

	t.Run("explode", func(t *testing.T) {
		req := request()
		req.Explode = &domain.NodeRef{Track: "variants", NodeID: "v1-v8"}
		result, err := svc.ComputeLayout(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, &domain.NodeRef{Track: "variants", NodeID: "v1-v8"}, result.Exploded)
		assert.Equal(t, lollipop.StateClusterExploded, result.State)
		assert.True(t, result.Layouts[1].Node("v1-v8").Exploded)
	})

	t.Run("explode unknown node", func(t *testing.T) {
		req := request()
		req.Explode = &domain.NodeRef{Track: "variants", NodeID: "nope"}
		_, err := svc.ComputeLayout(ctx, req)
		assert.ErrorIs(t, err, lollipop.ErrNodeNotFound)
	})
}

func TestLayoutService_Errors(t *testing.T) {
	svc := newLayoutService(t, nil, false)
	ctx := context.Background()

	_, err := svc.ComputeLayout(ctx, &domain.LayoutRequest{})
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)

	req := request()
	req.Tracks[1].View = nil
	_, err = svc.ComputeLayout(ctx, req)
	var cfgErr *lollipop.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	dense := &domain.LayoutRequest{
		Width: 100,
		Tracks: []*lollipop.Track{{
			Name:     "variants",
			Type:     lollipop.TrackVariants,
			View:     &lollipop.TrackView{VariantAreaHeight: 100, CircleSize: 60},
			Variants: []lollipop.Variant{{ID: "a", Start: 100}, {ID: "b", Start: 900}},
		}},
	}
	_, err = svc.ComputeLayout(ctx, dense)
	assert.ErrorIs(t, err, lollipop.ErrLayoutInfeasible)
	code, status := domain.ClassifyError(err)
	assert.Equal(t, domain.ErrLayoutInfeasible, code)
	assert.Equal(t, 422, status)
}

func TestLayoutService_Cache(t *testing.T) {
	svc := newLayoutService(t, nil, true)
	ctx := context.Background()

	first, err := svc.ComputeLayout(ctx, request())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.ComputeLayout(ctx, request())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Layouts, second.Layouts)

	other := request()
	other.Width = 800
	third, err := svc.ComputeLayout(ctx, other)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 800.0, third.Width)
}

func TestLayoutService_DoesNotMutateRequest(t *testing.T) {
	source := &mockSource{}
	source.On("FetchVariants", mock.Anything, "TP53").
		Return([]lollipop.Variant{{ID: "r175h", Start: 175}, {ID: "r248q", Start: 248}}, nil)
	svc := newLayoutService(t, source, false)

	req := request()
	req.Source = &domain.SourceRef{Gene: "TP53", Track: "variants"}
	result, err := svc.ComputeLayout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, lollipop.Range{175, 248}, result.ProteinDomain)
	assert.Len(t, req.Tracks[1].Variants, 9)
	source.AssertExpectations(t)
}

func TestLayoutService_RenderSVG(t *testing.T) {
	svc := newLayoutService(t, nil, false)

	doc, result, err := svc.RenderSVG(context.Background(), request())
	require.NoError(t, err)
	require.NotNil(t, result)

	out := string(doc)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, `viewBox="0 0 1000 160"`)
	assert.Contains(t, out, `data-id="variants/v1-v8"`)
	assert.Contains(t, out, `data-id="navigation/window"`)
}

func TestVariantProvider_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("inline variants are copied", func(t *testing.T) {
		p := NewVariantProvider(nil, quietLogger())
		req := request()
		tracks, err := p.Resolve(ctx, req)
		require.NoError(t, err)
		require.Len(t, tracks, 2)
		tracks[1].Variants[0].Start = 1
		tracks[1].View.CircleSize = 99
		assert.Equal(t, 100, req.Tracks[1].Variants[0].Start)
		assert.Equal(t, 10.0, req.Tracks[1].View.CircleSize)
	})

	t.Run("no source configured", func(t *testing.T) {
		p := NewVariantProvider(nil, quietLogger())
		assert.False(t, p.HasSource())
		req := request()
		req.Source = &domain.SourceRef{Gene: "TP53", Track: "variants"}
		_, err := p.Resolve(ctx, req)
		code, _ := domain.ClassifyError(err)
		assert.Equal(t, domain.ErrExternalAPI, code)
	})

	t.Run("missing track is appended", func(t *testing.T) {
		source := &mockSource{}
		source.On("FetchVariants", mock.Anything, "BRCA1").Return([]lollipop.Variant{{ID: "a", Start: 10}}, nil)
		p := NewVariantProvider(source, quietLogger())

		req := &domain.LayoutRequest{
			Tracks: []*lollipop.Track{navTrack()},
			Source: &domain.SourceRef{Gene: "BRCA1", Track: "remote"},
		}
		tracks, err := p.Resolve(ctx, req)
		require.NoError(t, err)
		require.Len(t, tracks, 2)
		assert.Equal(t, "remote", tracks[1].Name)
		assert.Equal(t, lollipop.TrackVariants, tracks[1].Type)
		assert.NoError(t, tracks[1].Validate())
	})

	t.Run("source track must be a variants track", func(t *testing.T) {
		source := &mockSource{}
		source.On("FetchVariants", mock.Anything, "TP53").Return([]lollipop.Variant{{ID: "a", Start: 10}}, nil)
		p := NewVariantProvider(source, quietLogger())

		req := request()
		req.Source = &domain.SourceRef{Gene: "TP53", Track: "navigation"}
		_, err := p.Resolve(ctx, req)
		var validation *domain.ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("unknown gene", func(t *testing.T) {
		source := &mockSource{}
		source.On("FetchVariants", mock.Anything, "NOPE").Return(nil, external.ErrGeneNotFound)
		p := NewVariantProvider(source, quietLogger())

		req := request()
		req.Source = &domain.SourceRef{Gene: "NOPE", Track: "variants"}
		_, err := p.Resolve(ctx, req)
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "source.gene", validation.Field)
	})

	t.Run("source failure", func(t *testing.T) {
		source := &mockSource{}
		source.On("FetchVariants", mock.Anything, "TP53").Return(nil, external.ErrServiceUnavailable)
		p := NewVariantProvider(source, quietLogger())

		req := request()
		req.Source = &domain.SourceRef{Gene: "TP53", Track: "variants"}
		_, err := p.Resolve(ctx, req)
		code, status := domain.ClassifyError(err)
		assert.Equal(t, domain.ErrExternalAPI, code)
		assert.Equal(t, 502, status)
	})
}

func TestVariantProvider_ApplyFile(t *testing.T) {
	vcf := strings.Join([]string{
		"##fileformat=VCFv4.2",
		`##INFO=<ID=AA_POS,Number=1,Type=Integer,Description="Protein position">`,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
		"17\t7675088\trs1\tC\tT\t.\tPASS\tAA_POS=175",
		"17\t7674220\trs2\tC\tT\t.\tPASS\tAA_POS=248",
	}, "\n") + "\n"
	path := filepath.Join(t.TempDir(), "in.vcf")
	require.NoError(t, os.WriteFile(path, []byte(vcf), 0o644))

	p := NewVariantProvider(nil, quietLogger())
	original := []*lollipop.Track{navTrack(), clusterTrack()}
	tracks, stats, err := p.ApplyFile(original, "variants", path, loader.VCFOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Variants)
	assert.Equal(t, []lollipop.Variant{{ID: "rs1", Start: 175}, {ID: "rs2", Start: 248}}, tracks[1].Variants)
	assert.Len(t, original[1].Variants, 9)

	_, _, err = p.ApplyFile(original, "variants", filepath.Join(t.TempDir(), "missing.vcf"), loader.VCFOptions{})
	assert.Error(t, err)
}

func TestNewRemoteVariantSource(t *testing.T) {
	assert.Nil(t, NewRemoteVariantSource(domain.VariantSourceConfig{}, nil, quietLogger()))
	assert.Nil(t, NewRemoteVariantSource(domain.VariantSourceConfig{Enabled: true}, nil, quietLogger()))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/genes/TP53/variants" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"gene": "TP53",
			"variants": []map[string]interface{}{
				{"id": "VAR1", "protein_position": 175},
				{"id": "VAR2", "protein_position": 248},
			},
		})
	}))
	defer server.Close()

	source := NewRemoteVariantSource(domain.VariantSourceConfig{
		Enabled:   true,
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		RateLimit: 100,
	}, nil, quietLogger())
	require.NotNil(t, source)

	layouts := NewLayoutService(lollipop.DefaultConfig(), nil, 0, NewVariantProvider(source, quietLogger()), quietLogger())
	result, err := layouts.ComputeLayout(context.Background(), &domain.LayoutRequest{
		Source: &domain.SourceRef{Gene: "TP53", Track: "variants"},
	})
	require.NoError(t, err)
	require.Len(t, result.Layouts, 1)
	assert.Equal(t, lollipop.Range{175, 248}, result.ProteinDomain)
}

func newSessionManager(t *testing.T, ttl time.Duration, max int) *SessionManager {
	t.Helper()
	return NewSessionManager(newLayoutService(t, nil, false), ttl, max, quietLogger())
}

func TestSessionManager_Lifecycle(t *testing.T) {
	m := newSessionManager(t, time.Minute, 10)

	info, err := m.Create(context.Background(), request())
	require.NoError(t, err)
	require.NotEmpty(t, info.ID)
	assert.Equal(t, 1, m.Len())
	require.Len(t, info.Result.Layouts, 2)

	got, err := m.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.Result.ViewRange, got.Result.ViewRange)

	doc, err := m.SVG(info.ID)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `viewBox="0 0 1000 160"`)

	require.NoError(t, m.Delete(info.ID))
	_, err = m.Get(info.ID)
	assert.ErrorIs(t, err, domain.ErrSessionMissing)
	assert.ErrorIs(t, m.Delete(info.ID), domain.ErrSessionMissing)
}

func TestSessionManager_Events(t *testing.T) {
	m := newSessionManager(t, time.Minute, 10)
	info, err := m.Create(context.Background(), request())
	require.NoError(t, err)

	// drag the right handle of the navigation window to the middle
	_, changed, err := m.HandleEvent(info.ID, lollipop.Event{Kind: lollipop.EventPointerDown, X: 1000, Y: 10})
	require.NoError(t, err)
	assert.False(t, changed)

	moved, changed, err := m.HandleEvent(info.ID, lollipop.Event{Kind: lollipop.EventPointerMove, X: 500, Y: 10})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, lollipop.Range{0, 500}, moved.Result.ViewRange)
	assert.Equal(t, lollipop.StateRangeDragging, moved.Result.State)

	released, _, err := m.HandleEvent(info.ID, lollipop.Event{Kind: lollipop.EventPointerUp, X: 500, Y: 10})
	require.NoError(t, err)
	assert.Equal(t, lollipop.StateIdle, released.Result.State)

	// double click on the bar resets the view
	reset, changed, err := m.HandleEvent(info.ID, lollipop.Event{Kind: lollipop.EventDoubleClick, X: 250, Y: 10})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, lollipop.Range{0, 1000}, reset.Result.ViewRange)

	_, _, err = m.HandleEvent(info.ID, lollipop.Event{Kind: "wheel"})
	var cfgErr *lollipop.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, _, err = m.HandleEvent("missing", lollipop.Event{Kind: lollipop.EventPointerDown})
	assert.ErrorIs(t, err, domain.ErrSessionMissing)
}

func TestSessionManager_ExplodeZoomResize(t *testing.T) {
	m := newSessionManager(t, time.Minute, 10)
	info, err := m.Create(context.Background(), request())
	require.NoError(t, err)

	exploded, err := m.Explode(info.ID, "variants", "v1-v8")
	require.NoError(t, err)
	assert.Equal(t, &domain.NodeRef{Track: "variants", NodeID: "v1-v8"}, exploded.Result.Exploded)

	collapsed, err := m.Explode(info.ID, "variants", "v1-v8")
	require.NoError(t, err)
	assert.Nil(t, collapsed.Result.Exploded)

	_, err = m.Explode(info.ID, "variants", "nope")
	assert.ErrorIs(t, err, lollipop.ErrNodeNotFound)

	zoomed, err := m.Zoom(info.ID, &lollipop.Range{500, 900})
	require.NoError(t, err)
	assert.Equal(t, lollipop.Range{500, 900}, zoomed.Result.ViewProteinRange)

	full, err := m.Zoom(info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, lollipop.Range{0, 1000}, full.Result.ViewRange)

	resized, err := m.Resize(info.ID, 800)
	require.NoError(t, err)
	assert.Equal(t, 800.0, resized.Result.Width)
	doc, err := m.SVG(info.ID)
	require.NoError(t, err)
	assert.Contains(t, string(doc), `viewBox="0 0 800 160"`)

	_, err = m.Resize(info.ID, -1)
	assert.Error(t, err)
}

func TestSessionManager_Limits(t *testing.T) {
	m := newSessionManager(t, time.Minute, 1)
	ctx := context.Background()

	_, err := m.Create(ctx, request())
	require.NoError(t, err)
	_, err = m.Create(ctx, request())
	assert.True(t, errors.Is(err, domain.ErrTooManySessions))

	_, err = m.Create(ctx, &domain.LayoutRequest{})
	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestSessionManager_Expiry(t *testing.T) {
	m := newSessionManager(t, time.Minute, 10)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	first, err := m.Create(context.Background(), request())
	require.NoError(t, err)
	second, err := m.Create(context.Background(), request())
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	_, err = m.Get(second.ID)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = m.Get(first.ID)
	assert.ErrorIs(t, err, domain.ErrSessionMissing)
	assert.Equal(t, 1, m.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Len())
}

func TestSessionManager_Run(t *testing.T) {
	m := newSessionManager(t, time.Minute, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
