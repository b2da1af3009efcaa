package catalog

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type fakeObject struct {
	body         string
	lastModified time.Time
	metadata     map[string]*string
	contentType  string
}

// fakeS3 serves a fixed sequence of listing pages and an in-memory object map.
// Calling any S3API method it does not override panics on the nil interface.
type fakeS3 struct {
	s3iface.S3API

	mu        sync.Mutex
	pages     [][]string
	objects   map[string]*fakeObject
	listCalls []s3.ListObjectsV2Input
	copies    []s3.CopyObjectInput
	listErr   error

	// dropToken makes the first page truncated without a continuation token.
	dropToken bool
	// onList runs after each listing call.
	onList func(call int)
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]*fakeObject{}}
}

func (f *fakeS3) put(key, body string, modified time.Time) {
	f.objects[key] = &fakeObject{body: body, lastModified: modified, contentType: "application/x-yaml"}
}

func (f *fakeS3) ListObjectsV2WithContext(_ aws.Context, in *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, *in)
	call := len(f.listCalls)
	f.mu.Unlock()
	if f.onList != nil {
		defer f.onList(call)
	}

	if f.listErr != nil {
		return nil, f.listErr
	}

	page := 0
	if tok := aws.StringValue(in.ContinuationToken); tok != "" {
		if _, err := fmt.Sscanf(tok, "page-%d", &page); err != nil {
			return nil, awserr.New("InvalidArgument", "bad continuation token", err)
		}
	}

	out := &s3.ListObjectsV2Output{Name: in.Bucket, Prefix: in.Prefix}
	if page < len(f.pages) {
		for _, key := range f.pages[page] {
			obj := &s3.Object{Key: aws.String(key), Size: aws.Int64(1), ETag: aws.String(`"etag-` + key + `"`)}
			if o, ok := f.objects[key]; ok {
				obj.LastModified = aws.Time(o.lastModified)
				obj.Size = aws.Int64(int64(len(o.body)))
			}
			out.Contents = append(out.Contents, obj)
		}
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		if !f.dropToken {
			out.NextContinuationToken = aws.String(fmt.Sprintf("page-%d", page+1))
		}
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	o, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(strings.NewReader(o.body)),
		LastModified: aws.Time(o.lastModified),
		Metadata:     o.metadata,
	}, nil
}

func (f *fakeS3) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	o, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New("NotFound", "Not Found", nil)
	}
	return &s3.HeadObjectOutput{
		LastModified: aws.Time(o.lastModified),
		Metadata:     o.metadata,
		ContentType:  aws.String(o.contentType),
	}, nil
}

func (f *fakeS3) CopyObjectWithContext(_ aws.Context, in *s3.CopyObjectInput, _ ...request.Option) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, *in)
	if o, ok := f.objects[aws.StringValue(in.Key)]; ok {
		o.metadata = in.Metadata
	}
	return &s3.CopyObjectOutput{}, nil
}
