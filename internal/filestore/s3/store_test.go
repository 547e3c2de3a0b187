package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/doc-analyzer/internal/filestore"
)

type fakeObjects struct {
	objects map[string]string
	types   map[string]string
	headErr error
	gotKeys []string
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.gotKeys = append(f.gotKeys, key)
	if f.headErr != nil {
		return nil, f.headErr
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(f.types[key]),
	}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	body, ok := f.objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestFetch(t *testing.T) {
	fake := &fakeObjects{
		objects: map[string]string{"invoices/in/2024/inv-1.pdf": "%PDF-1.7"},
		types:   map[string]string{"invoices/in/2024/inv-1.pdf": "application/pdf"},
	}
	store := &Store{client: fake, prefix: normalizePrefix("/in/")}

	data, info, err := filestore.Fetch(context.Background(), store, "invoices", "2024/inv-1.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.Equal(t, "inv-1.pdf", info.Name)
	assert.Equal(t, int64(8), info.Size)
	assert.Equal(t, []string{"invoices/in/2024/inv-1.pdf"}, fake.gotKeys)
}

func TestFetch_MissingContentType(t *testing.T) {
	fake := &fakeObjects{objects: map[string]string{"b/k": "raw"}, types: map[string]string{}}
	store := &Store{client: fake}

	_, info, err := filestore.Fetch(context.Background(), store, "b", "k", 0)
	require.NoError(t, err)
	assert.Equal(t, filestore.DefaultMimeType, info.MimeType)
}

func TestNotFound(t *testing.T) {
	store := &Store{client: &fakeObjects{objects: map[string]string{}}}

	_, err := store.Stat(context.Background(), "b", "missing")
	assert.ErrorIs(t, err, filestore.ErrNotFound)

	_, err = store.Open(context.Background(), "b", "missing")
	assert.ErrorIs(t, err, filestore.ErrNotFound)

	generic := &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "bucket gone"}
	store = &Store{client: &fakeObjects{headErr: generic}}
	_, err = store.Stat(context.Background(), "gone", "k")
	assert.ErrorIs(t, err, filestore.ErrNotFound)

	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"}
	store = &Store{client: &fakeObjects{headErr: denied}}
	_, err = store.Stat(context.Background(), "b", "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, filestore.ErrNotFound)
}

func TestApplyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "2024/inv.pdf", want: "2024/inv.pdf"},
		{name: "simple prefix", prefix: "root", key: "2024/inv.pdf", want: "root/2024/inv.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/2024/inv.pdf", want: "root/2024/inv.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyPrefix(tt.prefix, tt.key))
		})
	}
}
