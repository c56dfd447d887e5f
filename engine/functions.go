package engine

import (
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/viant/vec/search"
	sqlite "modernc.org/sqlite"
)

// RegisterVectorFunctions registers vec_cosine_distance with the driver so it
// is available on new connections opened after this call.
// Note: existing open connections will not see new functions.
func RegisterVectorFunctions(_ *sql.DB) error {
	// Idempotent registration; driver rejects duplicates but we ignore errors silently here.
	_ = sqlite.RegisterDeterministicScalarFunction("vec_cosine_distance", 2, vecCosineDistanceImpl)
	return nil
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeEmbedding(v)
	default:
		return nil, fmt.Errorf("vec_cosine_distance: unsupported argument type %T; want BLOB", arg)
	}
}

// vecCosineDistanceImpl computes 1 - cosine(a, b) over two embedding BLOBs.
// NULL inputs yield NULL so missing vectors never rank.
func vecCosineDistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine_distance: expected 2 arguments, got %d", len(args))
	}
	a, err := asEmbedding(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asEmbedding(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	d, err := cosineDistance(a, b)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Local minimal helpers to avoid import cycles in tests.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vec_cosine_distance: invalid embedding blob length %d", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

func cosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vec_cosine_distance: dim mismatch %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vec_cosine_distance: empty vectors")
	}
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0, fmt.Errorf("vec_cosine_distance: zero-magnitude vector")
	}
	// CosineDistance is exported on every GOARCH; the magnitude-reusing
	// variant is arm64-only in viant/vec.
	return float64(va.CosineDistance(b)), nil
}
