package stateful

import (
	"context"
	"net/http"

	"github.com/raywall/spec-emulator/pkg/state"
	"github.com/raywall/spec-emulator/pkg/types"
)

func (h *Handlers) ossDefinitions() []Definition {
	return []Definition{
		def("oss.buckets.list", "GET", "/oss/v2/buckets", h.listBuckets),
		def("oss.buckets.create", "POST", "/oss/v2/buckets", h.createBucket),
		def("oss.buckets.details", "GET", "/oss/v2/buckets/{bucketKey}/details", h.bucketDetails),
		def("oss.buckets.delete", "DELETE", "/oss/v2/buckets/{bucketKey}", h.deleteBucket),
		def("oss.objects.list", "GET", "/oss/v2/buckets/{bucketKey}/objects", h.listObjects),
		def("oss.objects.upload", "PUT", "/oss/v2/buckets/{bucketKey}/objects/{objectKey}", h.uploadObject),
		def("oss.objects.download", "GET", "/oss/v2/buckets/{bucketKey}/objects/{objectKey}", h.downloadObject),
		def("oss.objects.details", "GET", "/oss/v2/buckets/{bucketKey}/objects/{objectKey}/details", h.objectDetails),
		def("oss.objects.delete", "DELETE", "/oss/v2/buckets/{bucketKey}/objects/{objectKey}", h.deleteObject),
	}
}

// owner devolve o client_id dono do token da requisição.
func (h *Handlers) owner(req *types.Request) string {
	if req.Token == "" {
		return ""
	}
	if tok, err := h.ids.Validate(req.Token); err == nil {
		return tok.ClientID
	}
	return ""
}

func (h *Handlers) listBuckets(ctx context.Context, req *types.Request) (*types.Response, error) {
	return ok(items(h.store.OSS.ListBuckets()))
}

func (h *Handlers) createBucket(ctx context.Context, req *types.Request) (*types.Response, error) {
	var in state.Bucket
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.BucketOwner == "" {
		in.BucketOwner = h.owner(req)
	}
	bucket, err := h.store.OSS.CreateBucket(in)
	if err != nil {
		return nil, err
	}
	return ok(bucket)
}

func (h *Handlers) bucketDetails(ctx context.Context, req *types.Request) (*types.Response, error) {
	bucket, err := h.store.OSS.GetBucket(req.Param("bucketKey"))
	if err != nil {
		return nil, err
	}
	return ok(bucket)
}

func (h *Handlers) deleteBucket(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := h.store.OSS.DeleteBucket(req.Param("bucketKey")); err != nil {
		return nil, err
	}
	return ok(nil)
}

func (h *Handlers) listObjects(ctx context.Context, req *types.Request) (*types.Response, error) {
	objects, err := h.store.OSS.ListObjects(req.Param("bucketKey"))
	if err != nil {
		return nil, err
	}
	return ok(items(objects))
}

func (h *Handlers) uploadObject(ctx context.Context, req *types.Request) (*types.Response, error) {
	obj, err := h.store.OSS.PutObject(req.Param("bucketKey"), req.Param("objectKey"), req.Body, req.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return ok(obj)
}

func (h *Handlers) downloadObject(ctx context.Context, req *types.Request) (*types.Response, error) {
	obj, err := h.store.OSS.GetObject(req.Param("bucketKey"), req.Param("objectKey"))
	if err != nil {
		return nil, err
	}
	return &types.Response{Status: http.StatusOK, ContentType: obj.ContentType, Body: obj.Data}, nil
}

func (h *Handlers) objectDetails(ctx context.Context, req *types.Request) (*types.Response, error) {
	obj, err := h.store.OSS.GetObject(req.Param("bucketKey"), req.Param("objectKey"))
	if err != nil {
		return nil, err
	}
	return ok(obj)
}

func (h *Handlers) deleteObject(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := h.store.OSS.DeleteObject(req.Param("bucketKey"), req.Param("objectKey")); err != nil {
		return nil, err
	}
	return ok(nil)
}
