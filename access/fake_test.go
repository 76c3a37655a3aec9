package access

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/voaccess/vocloud/dal"
	"github.com/voaccess/vocloud/provider"
)

// fakeRecord implements dal.Record for discovery tests.
type fakeRecord struct {
	set     dal.RecordSet
	columns []string
	values  map[string]any
	ucds    map[string]any
	dataURL string
}

func (r *fakeRecord) Value(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

func (r *fakeRecord) ByUCD(ucd string) any { return r.ucds[ucd] }

func (r *fakeRecord) DataURL() string { return r.dataURL }

func (r *fakeRecord) ColumnNames() []string { return r.columns }

func (r *fakeRecord) ResultSet() dal.RecordSet { return r.set }

// fakeRecordSet implements dal.RecordSet with a canned datalink service whose
// responses are keyed by the bound provider-parameter value.
type fakeRecordSet struct {
	records []*fakeRecord
	service *dal.Service
	results map[string]*dal.Table
	calls   []map[string]string
	execErr error
}

func (s *fakeRecordSet) Len() int { return len(s.records) }

func (s *fakeRecordSet) Record(i int) dal.Record { return s.records[i] }

func (s *fakeRecordSet) DatalinkByID(id string) (*dal.Service, error) {
	if s.service != nil && s.service.ID == id {
		return s.service, nil
	}
	return nil, dal.ErrNoService
}

func (s *fakeRecordSet) DatalinkByIVOID(ivoid string) (*dal.Service, error) {
	if s.service != nil && s.service.IVOID == ivoid {
		return s.service, nil
	}
	return nil, dal.ErrNoService
}

func (s *fakeRecordSet) ExecDatalink(_ context.Context, _ []dal.Record, _ *dal.Service, params map[string]string) (*dal.Table, error) {
	s.calls = append(s.calls, params)
	if s.execErr != nil {
		return nil, s.execErr
	}
	for _, v := range params {
		if t, ok := s.results[v]; ok {
			return t, nil
		}
	}
	return dal.NewTable([]string{datalinkIDColumn, datalinkURLColumn}), nil
}

// adopt wires records to their owning set.
func (s *fakeRecordSet) adopt() *fakeRecordSet {
	for _, r := range s.records {
		r.set = s
	}
	return s
}

// The mock provider exists to observe probe and download traffic that a
// correctly scoped operation must never generate.
var mockProbes atomic.Int32

type mockAccessPoint struct {
	uid string
}

func init() {
	provider.Register("mock", []string{"url"}, func(params map[string]string, _ provider.Meta) (provider.AccessPoint, error) {
		return &mockAccessPoint{uid: params["url"]}, nil
	})
}

func (m *mockAccessPoint) Provider() provider.ID { return "mock" }

func (m *mockAccessPoint) UID() string { return m.uid }

func (m *mockAccessPoint) Accessible(context.Context) (bool, string) {
	mockProbes.Add(1)
	if strings.Contains(m.uid, "bad") {
		return false, "mock access point is unreachable"
	}
	return true, "OK"
}

func (m *mockAccessPoint) Download(_ context.Context, opts provider.DownloadOptions) (string, error) {
	if strings.Contains(m.uid, "bad") {
		return "", fmt.Errorf("mock download refused: %w", provider.ErrDownload)
	}
	path := filepath.Join(opts.Dir, filepath.Base(m.uid))
	if err := os.WriteFile(path, []byte("mock data"), 0644); err != nil {
		return "", err
	}
	return path, nil
}
