package llm

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	fallbackArtStyles = []string{"cinematic", "fantasy art", "photorealistic", "digital painting"}
	fallbackLighting  = []string{"dramatic lighting", "golden hour sunlight", "soft ambient light", "moody shadows"}
	fallbackDetails   = []string{"intricate details", "high resolution", "textured surfaces", "vibrant colors"}
)

// fallbackEnhancer produces an algorithmic enhancement when the remote
// backend is unreachable. Option selection is uniformly random; the result
// only needs to be better than the bare prompt, not deterministic.
type fallbackEnhancer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newFallbackEnhancer(rng *rand.Rand) *fallbackEnhancer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &fallbackEnhancer{rng: rng}
}

func (f *fallbackEnhancer) Enhance(userPrompt string) string {
	f.mu.Lock()
	style := fallbackArtStyles[f.rng.Intn(len(fallbackArtStyles))]
	light := fallbackLighting[f.rng.Intn(len(fallbackLighting))]
	detail := fallbackDetails[f.rng.Intn(len(fallbackDetails))]
	f.mu.Unlock()

	return fmt.Sprintf("%s, %s, %s, %s, masterfully crafted, 8k resolution", userPrompt, style, light, detail)
}
