package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/renjie/prism-co2/pkg/core/domain"
)

func TestTimeAligner_Nearest(t *testing.T) {
	source := []time.Time{at(0), at(2), at(4)}
	aligner := domain.NewAligner(30 * time.Second)

	assert.Equal(t, 0, aligner.Nearest(source, at(0).Add(10*time.Second)))
	assert.Equal(t, 1, aligner.Nearest(source, at(2).Add(-30*time.Second)))
	assert.Equal(t, -1, aligner.Nearest(source, at(1)))
	assert.Equal(t, -1, aligner.Nearest(source, at(5)))
	assert.Equal(t, -1, aligner.Nearest(nil, at(0)))

	// 距离相同时取较早的一条
	wide := domain.NewAligner(time.Minute)
	assert.Equal(t, 0, wide.Nearest(source, at(1)))
}

func TestTimeAligner_Align(t *testing.T) {
	source := []time.Time{at(0), at(10)}
	aligner := domain.NewAligner(time.Minute)
	got := aligner.Align(source, []time.Time{at(0), at(1), at(5), at(11)})
	assert.Equal(t, []int{0, 0, -1, 1}, got)
}
