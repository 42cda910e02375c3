package azure

import (
	"context"
)

// fakeAPI implements AzureAPI with overridable functions. Methods without
// an override succeed with zero values, which reads as an empty but healthy
// account.
type fakeAPI struct {
	ListAccountsFunc        func(ctx context.Context) ([]AccountMeta, error)
	AccountPropertiesFunc   func(ctx context.Context, account string) (AccountMeta, error)
	AccountInfoFunc         func(ctx context.Context, account string) (DataAccountInfo, error)
	ListContainersFunc      func(ctx context.Context, account, marker string) (ContainerPage, error)
	ContainerPropertiesFunc func(ctx context.Context, account, container string) (ContainerProps, error)
	ListBlobsHierarchyFunc  func(ctx context.Context, account, container string, opts HierarchyOptions) (HierarchyPage, error)
	BlobPropertiesFunc      func(ctx context.Context, account, container, name string) (BlobProps, error)
	BlobTagsFunc            func(ctx context.Context, account, container, name string) (map[string]string, error)
	GetAccessControlFunc    func(ctx context.Context, account, container, path string, isDirectory bool) (AccessControl, error)
	DirectoryPropertiesFunc func(ctx context.Context, account, container, path string) (DirProps, error)
}

func (f *fakeAPI) ListAccounts(ctx context.Context) ([]AccountMeta, error) {
	if f.ListAccountsFunc != nil {
		return f.ListAccountsFunc(ctx)
	}
	return nil, nil
}

func (f *fakeAPI) AccountProperties(ctx context.Context, account string) (AccountMeta, error) {
	if f.AccountPropertiesFunc != nil {
		return f.AccountPropertiesFunc(ctx, account)
	}
	return AccountMeta{}, nil
}

func (f *fakeAPI) AccountInfo(ctx context.Context, account string) (DataAccountInfo, error) {
	if f.AccountInfoFunc != nil {
		return f.AccountInfoFunc(ctx, account)
	}
	return DataAccountInfo{}, nil
}

func (f *fakeAPI) ListContainers(ctx context.Context, account, marker string) (ContainerPage, error) {
	if f.ListContainersFunc != nil {
		return f.ListContainersFunc(ctx, account, marker)
	}
	return ContainerPage{}, nil
}

func (f *fakeAPI) ContainerProperties(ctx context.Context, account, container string) (ContainerProps, error) {
	if f.ContainerPropertiesFunc != nil {
		return f.ContainerPropertiesFunc(ctx, account, container)
	}
	return ContainerProps{}, nil
}

func (f *fakeAPI) ListBlobsHierarchy(ctx context.Context, account, container string, opts HierarchyOptions) (HierarchyPage, error) {
	if f.ListBlobsHierarchyFunc != nil {
		return f.ListBlobsHierarchyFunc(ctx, account, container, opts)
	}
	return HierarchyPage{}, nil
}

func (f *fakeAPI) BlobProperties(ctx context.Context, account, container, name string) (BlobProps, error) {
	if f.BlobPropertiesFunc != nil {
		return f.BlobPropertiesFunc(ctx, account, container, name)
	}
	return BlobProps{}, nil
}

func (f *fakeAPI) BlobTags(ctx context.Context, account, container, name string) (map[string]string, error) {
	if f.BlobTagsFunc != nil {
		return f.BlobTagsFunc(ctx, account, container, name)
	}
	return nil, nil
}

func (f *fakeAPI) GetAccessControl(ctx context.Context, account, container, path string, isDirectory bool) (AccessControl, error) {
	if f.GetAccessControlFunc != nil {
		return f.GetAccessControlFunc(ctx, account, container, path, isDirectory)
	}
	return AccessControl{}, nil
}

func (f *fakeAPI) DirectoryProperties(ctx context.Context, account, container, path string) (DirProps, error) {
	if f.DirectoryPropertiesFunc != nil {
		return f.DirectoryPropertiesFunc(ctx, account, container, path)
	}
	return DirProps{}, nil
}

var _ AzureAPI = (*fakeAPI)(nil)
