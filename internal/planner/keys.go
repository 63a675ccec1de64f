package planner

import (
	"fmt"

	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// keyResolver hands out artifact keys that are unique within one batch.
// The first pair to request a key owns it; later pairs with the same key get
// the pair hash appended.
type keyResolver struct {
	hashed bool
	owners map[string]string // key → "shape|raster" that owns it
}

func newKeyResolver(hashed bool) *keyResolver {
	return &keyResolver{hashed: hashed, owners: make(map[string]string)}
}

// resolve returns the key for the pair and whether it had to be
// disambiguated because another pair already held the base key.
func (kr *keyResolver) resolve(shapePath, rasterPath string, op domain.Operator) (string, bool) {
	base := domain.ArtifactKey(shapePath, rasterPath, op)
	pair := shapePath + "|" + rasterPath
	hash := domain.PairHash(shapePath, rasterPath)

	if kr.hashed {
		return kr.claim(base+"_"+hash, pair), false
	}

	owner, exists := kr.owners[base]
	if !exists || owner == pair {
		kr.owners[base] = pair
		return base, false
	}
	return kr.claim(base+"_"+hash, pair), true
}

// claim registers key for pair, adding a counter if even the hashed key is
// taken.
func (kr *keyResolver) claim(key, pair string) string {
	candidate := key
	for n := 2; ; n++ {
		owner, exists := kr.owners[candidate]
		if !exists || owner == pair {
			kr.owners[candidate] = pair
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", key, n)
	}
}
