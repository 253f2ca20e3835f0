package state

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newTestStore(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = fixedClock()
	}
	return NewStore(opts)
}

func TestCollection_InsertionOrder(t *testing.T) {
	c := NewCollection[int]()
	assert.True(t, c.Insert("b", 2))
	assert.True(t, c.Insert("a", 1))
	assert.False(t, c.Insert("b", 20))
	c.Put("c", 3)
	c.Put("b", 22)

	assert.Equal(t, []string{"b", "a", "c"}, c.Keys())
	assert.Equal(t, []int{22, 1, 3}, c.Values())

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, []string{"b", "c"}, c.Keys())
	assert.Equal(t, 2, c.Len())
}

func TestOSS_Buckets(t *testing.T) {
	oss := newTestStore(Options{}).OSS

	b, err := oss.CreateBucket(Bucket{BucketKey: "models"})
	require.NoError(t, err)
	assert.Equal(t, "transient", b.PolicyKey)
	assert.NotZero(t, b.CreatedDate)

	_, err = oss.CreateBucket(Bucket{BucketKey: "models", PolicyKey: "persistent"})
	assert.True(t, faults.IsCategory(err, faults.ConflictError))

	_, err = oss.CreateBucket(Bucket{BucketKey: "Inválido!"})
	assert.True(t, faults.IsCategory(err, faults.ValidationError))

	_, err = oss.CreateBucket(Bucket{BucketKey: "other", PolicyKey: "forever"})
	assert.True(t, faults.IsCategory(err, faults.ValidationError))

	_, err = oss.CreateBucket(Bucket{BucketKey: "assets", PolicyKey: "persistent"})
	require.NoError(t, err)

	keys := []string{}
	for _, b := range oss.ListBuckets() {
		keys = append(keys, b.BucketKey)
	}
	assert.Equal(t, []string{"models", "assets"}, keys)

	got, err := oss.GetBucket("assets")
	require.NoError(t, err)
	assert.Equal(t, "persistent", got.PolicyKey)

	_, err = oss.GetBucket("nope")
	assert.True(t, faults.IsCategory(err, faults.NotFoundError))
}

func TestOSS_ObjectRequiresBucket(t *testing.T) {
	oss := newTestStore(Options{}).OSS

	_, err := oss.PutObject("models", "house.rvt", []byte("abc"), "")
	require.Error(t, err)
	assert.True(t, faults.IsCategory(err, faults.ReferentialError))

	_, err = oss.CreateBucket(Bucket{BucketKey: "models"})
	require.NoError(t, err)

	obj, err := oss.PutObject("models", "house.rvt", []byte("abc"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), obj.Size)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", obj.SHA1)
	assert.Equal(t, "urn:adsk.objects:os.object:models/house.rvt", obj.ObjectID)
	assert.Equal(t, "application/octet-stream", obj.ContentType)

	// upsert mantém posição e substitui conteúdo
	_, err = oss.PutObject("models", "a.txt", []byte("1"), "text/plain")
	require.NoError(t, err)
	_, err = oss.PutObject("models", "house.rvt", []byte("abcd"), "")
	require.NoError(t, err)

	objects, err := oss.ListObjects("models")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "house.rvt", objects[0].ObjectKey)
	assert.Equal(t, int64(4), objects[0].Size)

	require.NoError(t, oss.DeleteObject("models", "a.txt"))
	assert.True(t, faults.IsCategory(oss.DeleteObject("models", "a.txt"), faults.NotFoundError))
}

func TestOSS_DeleteBucketCascades(t *testing.T) {
	oss := newTestStore(Options{}).OSS
	_, _ = oss.CreateBucket(Bucket{BucketKey: "models"})
	_, _ = oss.PutObject("models", "x", []byte("x"), "")

	require.NoError(t, oss.DeleteBucket("models"))

	_, err := oss.GetObject("models", "x")
	assert.True(t, faults.IsCategory(err, faults.NotFoundError))
	_, err = oss.ListObjects("models")
	assert.True(t, faults.IsCategory(err, faults.NotFoundError))

	// recriar não ressuscita objetos
	_, err = oss.CreateBucket(Bucket{BucketKey: "models"})
	require.NoError(t, err)
	objects, err := oss.ListObjects("models")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestOSS_ConcurrentCreateExactlyOneWins(t *testing.T) {
	oss := newTestStore(Options{}).OSS

	const workers = 32
	var created, conflicts int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := oss.CreateBucket(Bucket{BucketKey: "race"})
			switch {
			case err == nil:
				atomic.AddInt32(&created, 1)
			case faults.IsCategory(err, faults.ConflictError):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(workers-1), conflicts)
	assert.Len(t, oss.ListBuckets(), 1)
}

func TestOSS_ReadsAreIdempotent(t *testing.T) {
	oss := newTestStore(Options{}).OSS
	_, _ = oss.CreateBucket(Bucket{BucketKey: "models"})
	_, _ = oss.PutObject("models", "x", []byte("x"), "")

	first, err := oss.GetObject("models", "x")
	require.NoError(t, err)
	first.Data[0] = 'y'

	second, err := oss.GetObject("models", "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), second.Data)
}
