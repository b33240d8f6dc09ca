package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	put     *s3.PutObjectInput
	body    string
	deleted []string
	err     error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.put = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(data)
	return &s3.PutObjectOutput{ETag: aws.String(`"abc123"`)}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestR2Upload(t *testing.T) {
	api := &fakeObjectAPI{}
	u, err := newR2Uploader(api, "logos", "https://cdn.example.com/assets/")
	require.NoError(t, err)

	res, err := u.Upload(context.Background(), "teams/1/logo_1.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.ETag)
	assert.Equal(t, "https://cdn.example.com/assets/teams/1/logo_1.png", res.Location)
	assert.Equal(t, "logos", aws.ToString(api.put.Bucket))
	assert.Equal(t, "image/png", aws.ToString(api.put.ContentType))
	assert.Equal(t, "png", api.body)

	require.NoError(t, u.Delete(context.Background(), "teams/1/logo_1.png"))
	assert.Equal(t, []string{"teams/1/logo_1.png"}, api.deleted)
}

func TestR2Errors(t *testing.T) {
	api := &fakeObjectAPI{err: errors.New("network down")}
	u, err := newR2Uploader(api, "logos", "https://cdn.example.com")
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), "k", "image/png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "network down")
	assert.ErrorContains(t, u.Delete(context.Background(), "k"), "network down")

	_, err = newR2Uploader(api, "logos", "not a url")
	assert.Error(t, err)
}

func TestGetPublicURL(t *testing.T) {
	u, err := newR2Uploader(&fakeObjectAPI{}, "logos", "https://cdn.example.com")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/teams/2/a.png", u.GetPublicURL("/teams/2/a.png"))
	assert.Equal(t, "", u.GetPublicURL(""))
}

func TestNewCloudflareR2UploaderRequiresConfig(t *testing.T) {
	_, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2UploaderConfig{AccountID: "acc"})
	assert.Error(t, err)
}
