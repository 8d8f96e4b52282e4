package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

const sample = `topic: startrek
seed: 7
only: [corpus_split]
paths:
  data: /srv/data
stages:
  - name: text_cleaning
  - name: corpus_split
    input_file: clean.txt
    splits:
      - {name: train, proportion: 8}
      - {name: valid, proportion: 1}
      - {name: test, proportion: 1}
`

type splitParams struct {
	InputFile string `yaml:"input_file"`
	Splits    []struct {
		Name       string  `yaml:"name"`
		Proportion float64 `yaml:"proportion"`
	} `yaml:"splits"`
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "startrek", doc.Topic)
	require.NotNil(t, doc.Seed)
	assert.Equal(t, int64(7), *doc.Seed)
	assert.Equal(t, []string{"corpus_split"}, doc.Only)
	assert.Equal(t, "/srv/data", doc.Paths.Data)
	assert.Empty(t, doc.Paths.Tmp)

	require.Len(t, doc.Stages, 2)
	assert.Equal(t, "text_cleaning", doc.Stages[0].Name)
	assert.False(t, doc.Stages[0].HasParams())

	var p splitParams
	require.NoError(t, doc.Stages[1].Decode(&p))
	assert.Equal(t, "clean.txt", p.InputFile)
	require.Len(t, p.Splits, 3)
	assert.Equal(t, "train", p.Splits[0].Name)
	assert.Equal(t, 8.0, p.Splits[0].Proportion)
}

func TestParseDefaultsTopic(t *testing.T) {
	doc, err := Parse([]byte("stages:\n  - name: a\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, doc.Topic)
	assert.Nil(t, doc.Seed)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"no stages":          "topic: x\n",
		"unknown top key":    "topic: x\nbogus: 1\nstages:\n  - name: a\n",
		"stage without name": "stages:\n  - splits: []\n",
		"stage not mapping":  "stages:\n  - just-a-string\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			require.ErrorIs(t, err, internalerr.ErrInvalidConfig)
		})
	}
}

func TestDecodeRejectsUnknownParams(t *testing.T) {
	doc, err := Parse([]byte("stages:\n  - name: corpus_split\n    splitz: []\n"))
	require.NoError(t, err)

	var p splitParams
	err = doc.Stages[0].Decode(&p)
	require.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "splitz")
}

func TestDecodeWithoutParamsKeepsDefaults(t *testing.T) {
	spec, err := NewStageSpec("corpus_split", nil)
	require.NoError(t, err)

	p := splitParams{InputFile: "default.txt"}
	require.NoError(t, spec.Decode(&p))
	assert.Equal(t, "default.txt", p.InputFile)
}

func TestNewStageSpecRoundTrip(t *testing.T) {
	spec, err := NewStageSpec("corpus_split", map[string]any{"input_file": "x.txt"})
	require.NoError(t, err)
	assert.True(t, spec.HasParams())

	var p splitParams
	require.NoError(t, spec.Decode(&p))
	assert.Equal(t, "x.txt", p.InputFile)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
