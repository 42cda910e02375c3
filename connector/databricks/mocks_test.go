package databricks

import (
	"context"
)

// fakeAPI implements DatabricksAPI with overridable functions. Methods
// without an override succeed with zero values.
type fakeAPI struct {
	ListVolumesFunc   func(ctx context.Context, catalog, schema string) ([]VolumeInfo, error)
	ListDirectoryFunc func(ctx context.Context, path string) ([]Entry, error)
	ListDBFSFunc      func(ctx context.Context, path string) ([]Entry, error)
	HostValue         string
}

func (f *fakeAPI) ListVolumes(ctx context.Context, catalog, schema string) ([]VolumeInfo, error) {
	if f.ListVolumesFunc != nil {
		return f.ListVolumesFunc(ctx, catalog, schema)
	}
	return nil, nil
}

func (f *fakeAPI) ListDirectory(ctx context.Context, path string) ([]Entry, error) {
	if f.ListDirectoryFunc != nil {
		return f.ListDirectoryFunc(ctx, path)
	}
	return nil, nil
}

func (f *fakeAPI) ListDBFS(ctx context.Context, path string) ([]Entry, error) {
	if f.ListDBFSFunc != nil {
		return f.ListDBFSFunc(ctx, path)
	}
	return nil, nil
}

func (f *fakeAPI) Host() string {
	if f.HostValue != "" {
		return f.HostValue
	}
	return "https://adb-test.azuredatabricks.net"
}

var _ DatabricksAPI = (*fakeAPI)(nil)
