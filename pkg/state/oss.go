package state

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
)

const ossBaseURL = "https://developer.api.autodesk.com/oss/v2"

var bucketKeyPattern = regexp.MustCompile(`^[-_.a-z0-9]{3,128}$`)

var bucketPolicies = map[string]bool{"transient": true, "temporary": true, "persistent": true}

type Permission struct {
	AuthID string `json:"authId"`
	Access string `json:"access"`
}

type Bucket struct {
	BucketKey   string       `json:"bucketKey"`
	BucketOwner string       `json:"bucketOwner"`
	CreatedDate int64        `json:"createdDate"`
	PolicyKey   string       `json:"policyKey"`
	Permissions []Permission `json:"permissions"`
}

type Object struct {
	BucketKey   string `json:"bucketKey"`
	ObjectKey   string `json:"objectKey"`
	ObjectID    string `json:"objectId"`
	SHA1        string `json:"sha1"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Location    string `json:"location"`
	CreatedDate int64  `json:"createdDate"`
	Data        []byte `json:"-"`
}

// OSS guarda buckets e objetos sob o mesmo lock: a existência do bucket é checada
// na mesma seção crítica que grava o objeto. Remover um bucket remove seus objetos.
type OSS struct {
	mu      sync.RWMutex
	buckets *Collection[Bucket]
	objects map[string]*Collection[Object]
	now     func() time.Time
}

func newOSS(opts Options) *OSS {
	o := &OSS{now: opts.Clock}
	o.reset()
	return o
}

func (o *OSS) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buckets = NewCollection[Bucket]()
	o.objects = make(map[string]*Collection[Object])
}

// CreateBucket cria o bucket. Chave duplicada resulta em ConflictError.
func (o *OSS) CreateBucket(b Bucket) (Bucket, error) {
	if !bucketKeyPattern.MatchString(b.BucketKey) {
		return Bucket{}, faults.Validation(fmt.Sprintf("bucketKey inválido '%s': use [-_.a-z0-9]{3,128}", b.BucketKey))
	}
	if b.PolicyKey == "" {
		b.PolicyKey = "transient"
	}
	if !bucketPolicies[b.PolicyKey] {
		return Bucket{}, faults.Validation(fmt.Sprintf("policyKey inválido '%s'", b.PolicyKey))
	}
	if b.BucketOwner == "" {
		b.BucketOwner = "mock-owner"
	}
	if len(b.Permissions) == 0 {
		b.Permissions = []Permission{{AuthID: b.BucketOwner, Access: "full"}}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	b.CreatedDate = o.now().UnixMilli()
	if !o.buckets.Insert(b.BucketKey, b) {
		return Bucket{}, faults.Conflict(fmt.Sprintf("bucket '%s' já existe", b.BucketKey))
	}
	o.objects[b.BucketKey] = NewCollection[Object]()
	return b, nil
}

func (o *OSS) GetBucket(key string) (Bucket, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	b, ok := o.buckets.Get(key)
	if !ok {
		return Bucket{}, faults.NotFound(fmt.Sprintf("bucket '%s' não encontrado", key))
	}
	return b, nil
}

// ListBuckets devolve os buckets em ordem de criação.
func (o *OSS) ListBuckets() []Bucket {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.buckets.Values()
}

// DeleteBucket remove o bucket e, em cascata, seus objetos.
func (o *OSS) DeleteBucket(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.buckets.Delete(key) {
		return faults.NotFound(fmt.Sprintf("bucket '%s' não encontrado", key))
	}
	delete(o.objects, key)
	return nil
}

// PutObject grava (upsert) o objeto. O bucket precisa existir.
func (o *OSS) PutObject(bucketKey, objectKey string, data []byte, contentType string) (Object, error) {
	if objectKey == "" {
		return Object{}, faults.Validation("objectKey é obrigatório")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	sum := sha1.Sum(data)
	obj := Object{
		BucketKey:   bucketKey,
		ObjectKey:   objectKey,
		ObjectID:    fmt.Sprintf("urn:adsk.objects:os.object:%s/%s", bucketKey, objectKey),
		SHA1:        hex.EncodeToString(sum[:]),
		Size:        int64(len(data)),
		ContentType: contentType,
		Location:    fmt.Sprintf("%s/buckets/%s/objects/%s", ossBaseURL, bucketKey, objectKey),
		Data:        append([]byte(nil), data...),
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	objects, ok := o.objects[bucketKey]
	if !ok {
		return Object{}, faults.Referential(fmt.Sprintf("bucket '%s' não existe", bucketKey))
	}
	obj.CreatedDate = o.now().UnixMilli()
	objects.Put(objectKey, obj)
	return obj, nil
}

func (o *OSS) GetObject(bucketKey, objectKey string) (Object, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	objects, ok := o.objects[bucketKey]
	if !ok {
		return Object{}, faults.NotFound(fmt.Sprintf("bucket '%s' não encontrado", bucketKey))
	}
	obj, ok := objects.Get(objectKey)
	if !ok {
		return Object{}, faults.NotFound(fmt.Sprintf("objeto '%s' não encontrado no bucket '%s'", objectKey, bucketKey))
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, nil
}

// ListObjects devolve os objetos do bucket em ordem de criação.
func (o *OSS) ListObjects(bucketKey string) ([]Object, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	objects, ok := o.objects[bucketKey]
	if !ok {
		return nil, faults.NotFound(fmt.Sprintf("bucket '%s' não encontrado", bucketKey))
	}
	return objects.Values(), nil
}

func (o *OSS) DeleteObject(bucketKey, objectKey string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	objects, ok := o.objects[bucketKey]
	if !ok {
		return faults.NotFound(fmt.Sprintf("bucket '%s' não encontrado", bucketKey))
	}
	if !objects.Delete(objectKey) {
		return faults.NotFound(fmt.Sprintf("objeto '%s' não encontrado no bucket '%s'", objectKey, bucketKey))
	}
	return nil
}
