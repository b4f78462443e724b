package format

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/schema"
)

func newTestFactory() *Factory {
	return NewFactory(config.DefaultConfig().Formats)
}

func TestFactoryLookup(t *testing.T) {
	f := newTestFactory()

	tests := []struct {
		input string
		want  string
	}{
		{"csv", "csv"},
		{"CSV", "csv"},
		{".csv", "csv"},
		{".txt", "csv"},
		{"tsv", "tsv"},
		{"fits", "fits"},
		{".fit", "fits"},
		{"FTS", "fits"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			desc, err := f.Lookup(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, desc.Name)
		})
	}

	_, err := f.Lookup("parquet")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFactoryFormats(t *testing.T) {
	names := make([]string, 0, 3)
	for _, d := range newTestFactory().Formats() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"csv", "tsv", "fits"}, names)
}

func TestFactoryCreate(t *testing.T) {
	f := newTestFactory()
	var buf bytes.Buffer

	df, err := f.Create("TestData.csv", &buf)
	require.NoError(t, err)
	assert.Equal(t, "TestData.csv", df.Name())
	assert.Equal(t, ".csv", df.Extension())

	df, err = f.Create("TestData.FITS", &buf)
	require.NoError(t, err)
	assert.IsType(t, &FitsFile{}, df)

	_, err = f.Create("TestData", &buf)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = f.Create("TestData.xls", &buf)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFactoryCreateNamed(t *testing.T) {
	f := newTestFactory()
	var buf bytes.Buffer

	df, err := f.CreateNamed("tsv", "TestData.dat", &buf)
	require.NoError(t, err)
	assert.Equal(t, ".tsv", df.Extension())

	df, err = f.CreateNamed("", "TestData.fit", &buf)
	require.NoError(t, err)
	assert.Equal(t, ".fits", df.Extension())
}

func TestFactoryResolve(t *testing.T) {
	f := newTestFactory()

	name, err := f.Resolve("", "a/b/TestData.fits")
	require.NoError(t, err)
	assert.Equal(t, "fits", name)

	name, err = f.Resolve("TSV", "TestData.csv")
	require.NoError(t, err)
	assert.Equal(t, "tsv", name)

	_, err = f.Resolve("", "README")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFactoryRegisterReplaces(t *testing.T) {
	f := newTestFactory()
	f.Register(Descriptor{Name: "csv", Extensions: []string{".csv"}}, func(name string, w io.Writer) DataFile {
		return NewDelimitedFile(name, ".csv", w, ';', false)
	})

	assert.Len(t, f.Formats(), 3)

	var buf bytes.Buffer
	df, err := f.Create("x.csv", &buf)
	require.NoError(t, err)
	require.NoError(t, df.WriteHeader([]schema.Column{{Name: "a"}, {Name: "b"}}))
	require.NoError(t, df.WriteRow([]interface{}{int64(1), "x"}))
	require.NoError(t, df.Close())
	assert.Equal(t, "1;x\n", buf.String())
}

func TestDelimitedFile(t *testing.T) {
	cols := []schema.Column{
		{Name: "ID", DataType: "INT"},
		{Name: "Name", DataType: "VARCHAR"},
		{Name: "Score", DataType: "FLOAT"},
	}

	var buf bytes.Buffer
	df, err := newTestFactory().Create("TestData.csv", &buf)
	require.NoError(t, err)

	require.NoError(t, df.WriteHeader(cols))
	require.NoError(t, df.WriteRow([]interface{}{int64(1), "alpha", 1.5}))
	require.NoError(t, df.WriteRow([]interface{}{int64(2), nil, nil}))
	require.NoError(t, df.WriteRow([]interface{}{int64(3), "a, \"quoted\" name", 0.1}))
	require.NoError(t, df.Close())

	expected := "ID,Name,Score\n" +
		"1,alpha,1.5\n" +
		"2,,\n" +
		"3,\"a, \"\"quoted\"\" name\",0.1\n"
	assert.Equal(t, expected, buf.String())
}

func TestDelimitedFileRowWidthMismatch(t *testing.T) {
	var buf bytes.Buffer
	df := NewDelimitedFile("x.csv", ".csv", &buf, ',', true)
	require.NoError(t, df.WriteHeader([]schema.Column{{Name: "a"}}))
	assert.Error(t, df.WriteRow([]interface{}{1, 2}))
}

func TestTSVWithoutHeader(t *testing.T) {
	cfg := config.DefaultConfig().Formats
	cfg.CSV.Header = false

	var buf bytes.Buffer
	df, err := NewFactory(cfg).Create("TestData.tsv", &buf)
	require.NoError(t, err)

	require.NoError(t, df.WriteHeader([]schema.Column{{Name: "a"}, {Name: "b"}}))
	require.NoError(t, df.WriteRow([]interface{}{"x", true}))
	require.NoError(t, df.Close())

	assert.Equal(t, "x\ttrue\n", buf.String())
	assert.False(t, strings.Contains(buf.String(), "a\tb"))
}

func TestCustomDelimiter(t *testing.T) {
	cfg := config.DefaultConfig().Formats
	cfg.CSV.Delimiter = "|"

	var buf bytes.Buffer
	df, err := NewFactory(cfg).Create("TestData.txt", &buf)
	require.NoError(t, err)

	require.NoError(t, df.WriteHeader([]schema.Column{{Name: "a"}, {Name: "b"}}))
	require.NoError(t, df.WriteRow([]interface{}{int64(7), "y"}))
	require.NoError(t, df.Close())

	assert.Equal(t, "a|b\n7|y\n", buf.String())
}

func TestRegistryMatchesConfigValidation(t *testing.T) {
	var names, exts []string
	for _, d := range newTestFactory().Formats() {
		names = append(names, d.Name)
		exts = append(exts, d.Extensions...)
	}

	assert.ElementsMatch(t, names, config.KnownFormats(), "config validation must accept every registered format")
	assert.ElementsMatch(t, exts, config.KnownExtensions(), "config validation must accept every registered extension")
}
