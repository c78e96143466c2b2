package annotate_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta10/wms-probe/internal/annotate"
	"github.com/delta10/wms-probe/internal/catalog"
	"github.com/delta10/wms-probe/internal/catalog/catalogtest"
	"github.com/delta10/wms-probe/internal/wms"
)

type fakeProber struct {
	verdicts map[string]wms.Verdict
	urls     map[string][]string
	panicOn  string
}

func (f *fakeProber) IsWMS(_ context.Context, rawURL string) wms.Verdict {
	if rawURL == f.panicOn {
		panic("unexpected capabilities structure")
	}

	verdict, ok := f.verdicts[rawURL]
	if !ok {
		return wms.Rejected
	}

	return verdict
}

func (f *fakeProber) ExtractBaseURLs(_ context.Context, rawURL string) wms.BaseURLSet {
	set := wms.BaseURLSet{}
	for _, u := range f.urls[rawURL] {
		set.Add(u)
	}

	return set
}

type fakeRecorder struct {
	mu     sync.Mutex
	labels []map[string]string
}

func (r *fakeRecorder) WriteLog(_ context.Context, labels map[string]string, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, labels)

	return nil
}

func TestAnnotate(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{
		verdicts: map[string]wms.Verdict{
			"https://confirmed.example.org/wms": wms.Confirmed,
			"https://slow.example.org/wms":      wms.Inconclusive,
		},
		urls: map[string][]string{
			"https://confirmed.example.org/wms": {"https://b.example.org/wms", "https://a.example.org/wms"},
		},
	}

	tests := []struct {
		name        string
		resource    catalog.Resource
		wantVerdict wms.Verdict
		wantChanged bool
		wantFormat  string
		wantURLs    string
	}{
		{
			name:        "confirmed resource is marked",
			resource:    catalog.Resource{ID: "1", URL: "https://confirmed.example.org/wms", Format: "HTML"},
			wantVerdict: wms.Confirmed,
			wantChanged: true,
			wantFormat:  "WMS",
			wantURLs:    "https://a.example.org/wms https://b.example.org/wms",
		},
		{
			name: "already annotated resource is unchanged",
			resource: catalog.Resource{
				ID:          "2",
				URL:         "https://confirmed.example.org/wms",
				Format:      "WMS",
				WMSBaseURLs: "https://a.example.org/wms https://b.example.org/wms",
			},
			wantVerdict: wms.Confirmed,
			wantChanged: false,
			wantFormat:  "WMS",
			wantURLs:    "https://a.example.org/wms https://b.example.org/wms",
		},
		{
			name:        "inconclusive keeps an earlier WMS format",
			resource:    catalog.Resource{ID: "3", URL: "https://slow.example.org/wms", Format: "WMS", WMSBaseURLs: "https://slow.example.org/wms"},
			wantVerdict: wms.Inconclusive,
			wantChanged: false,
			wantFormat:  "WMS",
			wantURLs:    "https://slow.example.org/wms",
		},
		{
			name:        "rejected leaves the resource alone",
			resource:    catalog.Resource{ID: "4", URL: "https://www.example.org/report.pdf", Format: "PDF"},
			wantVerdict: wms.Rejected,
			wantChanged: false,
			wantFormat:  "PDF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resource := tt.resource
			result, err := annotate.New(prober, catalogtest.NewStore(), nil).Annotate(context.Background(), &resource)

			require.NoError(t, err)
			assert.Equal(t, tt.wantVerdict, result.Verdict)
			assert.Equal(t, tt.wantChanged, result.Changed)
			assert.Equal(t, tt.wantFormat, resource.Format)
			assert.Equal(t, tt.wantURLs, resource.WMSBaseURLs)
		})
	}
}

func TestAnnotate_RecoversPanic(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{panicOn: "https://odd.example.org/wms"}
	resource := catalog.Resource{ID: "5", URL: "https://odd.example.org/wms", Format: "WMS"}

	result, err := annotate.New(prober, catalogtest.NewStore(), nil).Annotate(context.Background(), &resource)

	assert.ErrorIs(t, err, annotate.ErrAnnotationPanic)
	assert.False(t, result.Changed)
	assert.Equal(t, "WMS", resource.Format)
}

func TestAnnotateByID_PersistsOnlyChanges(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{
		verdicts: map[string]wms.Verdict{"https://confirmed.example.org/wms": wms.Confirmed},
		urls:     map[string][]string{"https://confirmed.example.org/wms": {"https://confirmed.example.org/wms"}},
	}
	store := catalogtest.NewStore(
		catalog.Resource{ID: "new", URL: "https://confirmed.example.org/wms"},
		catalog.Resource{ID: "pdf", URL: "https://www.example.org/report.pdf", Format: "PDF"},
	)
	recorder := &fakeRecorder{}
	annotator := annotate.New(prober, store, nil, annotate.WithRecorder(recorder))

	result, err := annotator.AnnotateByID(context.Background(), "new")
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 1, store.Updates())

	stored, err := store.Show(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, catalog.FormatWMS, stored.Format)
	assert.Equal(t, "https://confirmed.example.org/wms", stored.WMSBaseURLs)

	result, err = annotator.AnnotateByID(context.Background(), "new")
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 1, store.Updates(), "unchanged resource is not written")

	_, err = annotator.AnnotateByID(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Updates())

	require.Len(t, recorder.labels, 3)
	assert.Equal(t, "confirmed", recorder.labels[0]["verdict"])
	assert.Equal(t, "rejected", recorder.labels[2]["verdict"])
}

type failingStore struct {
	catalog.Store
}

func (failingStore) Update(context.Context, *catalog.Resource) error {
	return errors.New("catalog is read-only")
}

func TestAnnotateByID_UpdateError(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{verdicts: map[string]wms.Verdict{"https://confirmed.example.org/wms": wms.Confirmed}}
	store := failingStore{catalogtest.NewStore(catalog.Resource{ID: "1", URL: "https://confirmed.example.org/wms"})}

	_, err := annotate.New(prober, store, nil).AnnotateByID(context.Background(), "1")

	assert.ErrorContains(t, err, "read-only")
}

func TestAnnotateAll_IsolatesFailures(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{
		verdicts: map[string]wms.Verdict{"https://confirmed.example.org/wms": wms.Confirmed},
		panicOn:  "https://odd.example.org/wms",
	}
	store := catalogtest.NewStore(
		catalog.Resource{ID: "ok", URL: "https://confirmed.example.org/wms"},
		catalog.Resource{ID: "odd", URL: "https://odd.example.org/wms"},
		catalog.Resource{ID: "other", URL: "https://www.example.org/"},
	)

	results := annotate.New(prober, store, nil, annotate.WithConcurrency(2)).
		AnnotateAll(context.Background(), []string{"ok", "odd", "missing", "other"})

	require.Len(t, results, 4)

	assert.Equal(t, "ok", results[0].ID)
	assert.Equal(t, wms.Confirmed, results[0].Verdict)
	assert.True(t, results[0].Changed)
	assert.NoError(t, results[0].Err)

	assert.ErrorIs(t, results[1].Err, annotate.ErrAnnotationPanic)
	assert.NotEmpty(t, results[1].Error)

	assert.ErrorIs(t, results[2].Err, catalog.ErrNotFound)
	assert.Equal(t, "missing", results[2].ID)

	assert.Equal(t, wms.Rejected, results[3].Verdict)
	assert.NoError(t, results[3].Err)

	assert.Equal(t, 1, store.Updates())
}
