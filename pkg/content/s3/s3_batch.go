package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sdu-escience/gridgate/pkg/content"
)

// maxDeleteBatch is the DeleteObjects limit per request.
const maxDeleteBatch = 1000

var _ content.GarbageCollectableStore = (*S3ContentStore)(nil)

// ListAllContent lists every object under the key prefix.
func (s *S3ContentStore) ListAllContent(ctx context.Context) (ids []content.ContentID, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation(OpList, time.Since(start), err)
		if err == nil {
			s.metrics.RecordObjects(OpList, len(ids))
		}
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})
	for paginator.HasMorePages() {
		page, perr := paginator.NextPage(ctx)
		if perr != nil {
			err = fmt.Errorf("failed to list objects: %w", perr)
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			ids = append(ids, s.contentID(*obj.Key))
		}
	}
	return ids, nil
}

// DeleteBatch removes ids with DeleteObjects, splitting into requests of at
// most maxDeleteBatch keys. A failed request marks its whole chunk as failed.
func (s *S3ContentStore) DeleteBatch(ctx context.Context, ids []content.ContentID) (map[content.ContentID]error, error) {
	failures := make(map[content.ContentID]error)
	defer func() {
		s.metrics.RecordObjects(OpDeleteBatch, len(ids)-len(failures))
	}()

	for i := 0; i < len(ids); i += maxDeleteBatch {
		if err := ctx.Err(); err != nil {
			for _, id := range ids[i:] {
				failures[id] = err
			}
			return failures, err
		}

		batch := ids[i:min(i+maxDeleteBatch, len(ids))]
		objects := make([]types.ObjectIdentifier, len(batch))
		for j, id := range batch {
			objects[j] = types.ObjectIdentifier{Key: aws.String(s.getObjectKey(id))}
		}

		start := time.Now()
		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		s.metrics.ObserveOperation(OpDeleteBatch, time.Since(start), err)
		if err != nil {
			for _, id := range batch {
				failures[id] = err
			}
			continue
		}

		for _, derr := range result.Errors {
			if derr.Key == nil {
				continue
			}
			failures[s.contentID(*derr.Key)] = errors.New(aws.ToString(derr.Code) + ": " + aws.ToString(derr.Message))
		}
	}
	return failures, nil
}

// contentID strips the key prefix from an object key.
func (s *S3ContentStore) contentID(key string) content.ContentID {
	return content.ContentID(strings.TrimPrefix(key, s.keyPrefix))
}
