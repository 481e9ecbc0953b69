package milvus

import (
	"Athena/backend/go/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectFilter(t *testing.T) {
	assert.Equal(t, "", SubjectFilter(""))
	assert.Equal(t, `subject == "Biology"`, SubjectFilter("Biology"))
	assert.Equal(t, `subject == "a \"quoted\" \\ subject"`, SubjectFilter(`a "quoted" \ subject`))
}

func TestBuildIndexFromConfig(t *testing.T) {
	for _, typ := range []string{"", "AUTOINDEX", "HNSW", "IVF_FLAT", "IVF_SQ8"} {
		cfg := config.IndexConfig{IndexType: typ, Params: map[string]interface{}{"nlist": 64}}
		idx, err := buildIndexFromConfig(cfg)
		require.NoError(t, err, typ)
		assert.NotNil(t, idx)

		sp, err := buildSearchParam(cfg, 10)
		require.NoError(t, err, typ)
		assert.NotNil(t, sp)
	}

	_, err := buildIndexFromConfig(config.IndexConfig{IndexType: "DISKANN_X"})
	assert.Error(t, err)
}
