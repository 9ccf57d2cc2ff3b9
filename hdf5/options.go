package hdf5

import "github.com/robert-malhotra/imslink/internal/message"

// FileOption configures Create.
type FileOption func(*fileOptions)

type fileOptions struct {
	offsetSize int
	lengthSize int
}

// WithOffsetSize sets the width of file addresses to 4 or 8 bytes.
func WithOffsetSize(n int) FileOption {
	return func(o *fileOptions) {
		if n == 4 || n == 8 {
			o.offsetSize = n
		}
	}
}

// WithLengthSize sets the width of stored lengths to 4 or 8 bytes.
func WithLengthSize(n int) FileOption {
	return func(o *fileOptions) {
		if n == 4 || n == 8 {
			o.lengthSize = n
		}
	}
}

// DatasetOption configures CreateDataset and CreateDatasetWithType.
type DatasetOption func(*datasetOptions)

type datasetOptions struct {
	chunks  []uint64
	maxDims []uint64
	attrs   []namedValue
	filters []message.FilterInfo
}

type namedValue struct {
	name  string
	value any
}

// WithChunks stores the dataset in chunks of the given shape. Filters need
// chunked storage.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) { o.chunks = dims }
}

// WithMaxDims records the largest extent the dataset may grow to; 0 means
// unlimited.
func WithMaxDims(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) { o.maxDims = dims }
}

// WithAttribute attaches an attribute, of any value SetAttr accepts.
func WithAttribute(name string, value any) DatasetOption {
	return func(o *datasetOptions) { o.attrs = append(o.attrs, namedValue{name, value}) }
}

// WithShuffle groups the bytes of each chunk by significance before the
// filters that follow it. Filters run in the order given.
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.filters = append(o.filters, message.FilterInfo{ID: message.FilterShuffle})
	}
}

// WithDeflate compresses each chunk with zlib. Levels outside 0-9 become
// 6.
func WithDeflate(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level < 0 || level > 9 {
			level = 6
		}
		o.filters = append(o.filters, message.DeflateFilter(uint32(level)))
	}
}

// WithFletcher32 appends a checksum to each stored chunk.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) { o.filters = append(o.filters, message.Fletcher32Filter()) }
}

// pipeline returns the filter pipeline message for elements of elemSize
// bytes, or nil without filters.
func (o *datasetOptions) pipeline(elemSize uint32) *message.FilterPipeline {
	if len(o.filters) == 0 {
		return nil
	}
	fs := make([]message.FilterInfo, len(o.filters))
	for i, f := range o.filters {
		if f.ID == message.FilterShuffle && len(f.ClientData) == 0 {
			f = message.ShuffleFilter(elemSize)
		}
		fs[i] = f
	}
	return message.NewFilterPipeline(fs...)
}
