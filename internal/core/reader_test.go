package core

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rr RecordReader) []Record {
	t.Helper()
	var out []Record
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func fieldsOf(recs []Record) [][]string {
	out := make([][]string, len(recs))
	for i, r := range recs {
		out[i] = r.Fields
	}
	return out
}

func TestRecordReader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		profile DelimiterProfile
		want    [][]string
		lines   []int
	}{
		{
			name:    "comma with doubled quotes",
			input:   "a,b\n\"x \"\"y\"\"\",2\n",
			profile: DelimiterProfile{Delimiter: ',', Quote: '"'},
			want:    [][]string{{"a", "b"}, {`x "y"`, "2"}},
			lines:   []int{1, 2},
		},
		{
			name:    "blank lines skipped",
			input:   "a,b\n\n\n1,2\n",
			profile: DelimiterProfile{Delimiter: ',', Quote: '"'},
			want:    [][]string{{"a", "b"}, {"1", "2"}},
			lines:   []int{1, 4},
		},
		{
			name:    "quoted newline keeps start line",
			input:   "id,text\n1,\"two\nlines\"\n2,x\n",
			profile: DelimiterProfile{Delimiter: ',', Quote: '"'},
			want:    [][]string{{"id", "text"}, {"1", "two\nlines"}, {"2", "x"}},
			lines:   []int{1, 2, 4},
		},
		{
			name:    "ragged rows kept as is",
			input:   "a,b,c\n1,2\n",
			profile: DelimiterProfile{Delimiter: ',', Quote: '"'},
			want:    [][]string{{"a", "b", "c"}, {"1", "2"}},
			lines:   []int{1, 2},
		},
		{
			name:    "crlf line endings",
			input:   "a;b\r\n1;2\r\n",
			profile: DelimiterProfile{Delimiter: ';', Quote: '"'},
			want:    [][]string{{"a", "b"}, {"1", "2"}},
			lines:   []int{1, 2},
		},
		{
			name:    "whitespace runs",
			input:   "id   name\t score\n1    ann     3.5\n",
			profile: DelimiterProfile{Delimiter: WhitespaceRun, Quote: '"'},
			want:    [][]string{{"id", "name", "score"}, {"1", "ann", "3.5"}},
			lines:   []int{1, 2},
		},
		{
			name:    "whitespace runs with quoted spaces",
			input:   "  1 \"a b\"   c  \n",
			profile: DelimiterProfile{Delimiter: WhitespaceRun, Quote: '"'},
			want:    [][]string{{"1", "a b", "c"}},
			lines:   []int{1},
		},
		{
			name:    "single quotes",
			input:   "'a;b';c\n'it''s';d\n",
			profile: DelimiterProfile{Delimiter: ';', Quote: '\''},
			want:    [][]string{{"a;b", "c"}, {"it's", "d"}},
			lines:   []int{1, 2},
		},
		{
			name:    "backslash escapes",
			input:   "1,\"say \\\"hi\\\"\"\n",
			profile: DelimiterProfile{Delimiter: ',', Quote: '"', Escape: EscapeBackslash},
			want:    [][]string{{"1", `say "hi"`}},
			lines:   []int{1},
		},
		{
			name:    "empty fields preserved",
			input:   "a|b|c\n|x|\n",
			profile: DelimiterProfile{Delimiter: '|', Quote: '\''},
			want:    [][]string{{"a", "b", "c"}, {"", "x", ""}},
			lines:   []int{1, 2},
		},
		{
			name:    "no trailing newline",
			input:   "a\tb\n1\t2",
			profile: DelimiterProfile{Delimiter: '\t', Quote: '\''},
			want:    [][]string{{"a", "b"}, {"1", "2"}},
			lines:   []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := readAll(t, NewRecordReader(strings.NewReader(tt.input), tt.profile, "test.csv"))
			assert.Equal(t, tt.want, fieldsOf(recs))

			lines := make([]int, len(recs))
			for i, r := range recs {
				lines[i] = r.Line
			}
			assert.Equal(t, tt.lines, lines)
		})
	}
}

func TestRecordReaderIsLazy(t *testing.T) {
	// The reader must not need the whole input to yield the first record.
	pr, pw := io.Pipe()
	rr := NewRecordReader(pr, DelimiterProfile{Delimiter: WhitespaceRun, Quote: '"'}, "pipe")

	go func() {
		_, _ = pw.Write([]byte("a b\n"))
	}()

	rec, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.Fields)
	pw.Close()
}

func TestRecordReaderSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	r := io.MultiReader(strings.NewReader("a b\n"), iotest.ErrReader(boom))
	rr := NewRecordReader(r, DelimiterProfile{Delimiter: WhitespaceRun, Quote: '"'}, "bad.txt")

	rec, err := rr.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.Fields)

	_, err = rr.Next()
	require.Error(t, err)

	var srcErr *SourceReadError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, "bad.txt", srcErr.Source)
	assert.Equal(t, 2, srcErr.Line)
	assert.ErrorIs(t, err, boom)
}

func TestReadSample(t *testing.T) {
	input := "a,b\n\n1,2\n3,4\n5,6\n"
	br := bufio.NewReader(strings.NewReader(input))

	sample, err := readSample(br, 2, "s")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n\n1,2\n", sample)

	rest, err := io.ReadAll(br)
	require.NoError(t, err)
	assert.Equal(t, "3,4\n5,6\n", string(rest))
}

func TestReadSampleShortInput(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("only,line"))
	sample, err := readSample(br, 20, "s")
	require.NoError(t, err)
	assert.Equal(t, "only,line", sample)
}
