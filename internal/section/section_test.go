package section

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const mixedDoc = `# heroes
query HeroQuery($episode: Episode = JEDI) {
  hero(episode: $episode) { name ...HeroDetails }
}

mutation { addHero(name: "}{") { id } }

fragment HeroDetails on Character {
  friends { ...FriendName }
}

fragment FriendName on Character { name }

"""
A hero. Braces { in descriptions } are ignored.
"""
type Character implements Node @key(fields: "id") {
  id: ID!
  name: String
}

scalar Date
union SearchResult = Human | Droid
directive @cached(ttl: Int = 10) repeatable on FIELD | QUERY
{ anonymous }
extend type Character { age: Int }
enum Episode { NEWHOPE EMPIRE JEDI }
input ReviewInput { stars: Int! }
interface Node { id: ID! }
schema { query: Query }
`

type sectionSummary struct {
	Type      Type
	Operation string
	Name      string
	Extension bool
	Ordinal   int
}

func summarize(secs []*Section) []sectionSummary {
	out := make([]sectionSummary, len(secs))
	for i, s := range secs {
		out[i] = sectionSummary{Type: s.Type, Operation: s.Operation, Name: s.Name, Extension: s.Extension, Ordinal: s.Ordinal}
	}
	return out
}

func TestScanAllDefinitionKinds(t *testing.T) {
	secs := Scan(mixedDoc)
	want := []sectionSummary{
		{Type: Operation, Operation: "query", Name: "HeroQuery"},
		{Type: Operation, Operation: "mutation"},
		{Type: Fragment, Name: "HeroDetails"},
		{Type: Fragment, Name: "FriendName"},
		{Type: Object, Name: "Character"},
		{Type: Scalar, Name: "Date"},
		{Type: Union, Name: "SearchResult"},
		{Type: Directive, Name: "cached"},
		{Type: Operation, Operation: "query", Ordinal: 1},
		{Type: Object, Name: "Character", Extension: true, Ordinal: 1},
		{Type: Enum, Name: "Episode"},
		{Type: Input, Name: "ReviewInput"},
		{Type: Interface, Name: "Node"},
		{Type: Schema},
	}
	if diff := cmp.Diff(want, summarize(secs)); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestScanSectionText(t *testing.T) {
	secs := Scan(mixedDoc)
	require.Equal(t, `mutation { addHero(name: "}{") { id } }`, secs[1].Text)
	require.Equal(t, "scalar Date", secs[5].Text)
	require.Equal(t, "union SearchResult = Human | Droid", secs[6].Text)
	require.Equal(t, "directive @cached(ttl: Int = 10) repeatable on FIELD | QUERY", secs[7].Text)
	require.Equal(t, "{ anonymous }", secs[8].Text)
	require.Contains(t, secs[4].Text, `"""`)
	require.Contains(t, secs[4].Text, "name: String\n}")

	for i := 1; i < len(secs); i++ {
		require.LessOrEqual(t, secs[i-1].End, secs[i].Start, "sections must not overlap")
	}
	for _, s := range secs {
		require.Equal(t, mixedDoc[s.Start:s.End], s.Text)
		require.Equal(t, len(s.Text), s.Size())
	}
}

func TestScanPositions(t *testing.T) {
	text := "scalar A scalar B\n\r\nquery é { x }\nscalar C"
	secs := Scan(text)
	require.Len(t, secs, 4)
	require.Equal(t, [3]int{0, 1, 1}, [3]int{secs[0].RuneStart, secs[0].Line, secs[0].Column})
	require.Equal(t, [3]int{9, 1, 10}, [3]int{secs[1].RuneStart, secs[1].Line, secs[1].Column})
	require.Equal(t, 3, secs[2].Line)
	require.Equal(t, 1, secs[2].Column)
	require.Equal(t, 20, secs[2].RuneStart)
	// "query é { x }" is 13 runes but 14 bytes.
	require.Equal(t, 4, secs[3].Line)
	require.Equal(t, 34, secs[3].RuneStart)
}

func TestScanToleratesGarbage(t *testing.T) {
	secs := Scan("} ) garbage query Q { a } \"dangling")
	require.Len(t, secs, 1)
	require.Equal(t, "Q", secs[0].Name)
}

func TestDocumentSectionLookup(t *testing.T) {
	doc := NewDocument("doc", mixedDoc)

	require.Equal(t, "HeroDetails", doc.Section(Fragment, "HeroDetails").Name)
	require.Equal(t, "HeroQuery", doc.Section(Operation, "").Name, "first operation wins")
	require.Equal(t, "Date", doc.Section(Scalar, "").Name, "single candidate wins")

	missing := doc.Section(Fragment, "Nope")
	require.True(t, missing.Empty())
	require.Equal(t, 0, missing.Size())

	ambiguous := doc.Section(Fragment, "")
	require.True(t, ambiguous.Empty(), "several fragments without a name is ambiguous")
}

func TestDocumentClosure(t *testing.T) {
	doc := NewDocument("doc", mixedDoc)
	q := doc.Section(Operation, "HeroQuery")
	got := doc.Closure([]*Section{q})
	names := make([]string, len(got))
	for i, s := range got {
		names[i] = s.Name
	}
	require.Equal(t, []string{"HeroQuery", "HeroDetails", "FriendName"}, names)
	require.True(t, doc.ClosureContains(q, []string{"hero", "friends", "name"}))
	require.False(t, doc.ClosureContains(q, []string{"stars"}))
}

func TestDocumentClosureCycle(t *testing.T) {
	doc := NewDocument("doc", `
query { ...A }
fragment A on T { a ...B }
fragment B on T { b ...A ... on T { c } }
`)
	got := doc.Closure([]*Section{doc.Sections[0]})
	require.Len(t, got, 3)
	require.Equal(t, []string{"B"}, doc.Spreads(doc.Fragment("A")))
	require.Equal(t, []string{"A"}, doc.Spreads(doc.Fragment("B")))
}

func TestLoaderMemorySource(t *testing.T) {
	src := NewMemorySource(map[string]string{"a.graphql": "query A { a }"})
	l := NewLoader(src)

	s, err := l.LoadSection(context.Background(), "a.graphql", Operation, "A")
	require.NoError(t, err)
	require.Equal(t, "query A { a }", s.Text)

	_, err = l.Load(context.Background(), "missing.doc")
	require.True(t, errors.Is(err, ErrDocumentNotFound), "got %v", err)

	_, err = l.Load(context.Background(), "")
	require.True(t, errors.Is(err, ErrDocumentNotFound))
}

func TestLoaderAFSSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.graphql")
	require.NoError(t, os.WriteFile(path, []byte("fragment F on T { x }"), 0644))

	l := NewLoader(nil)
	doc, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	require.Equal(t, "F", doc.Sections[0].Name)

	_, err = l.Load(context.Background(), filepath.Join(dir, "missing.graphql"))
	require.True(t, errors.Is(err, ErrDocumentNotFound), "got %v", err)
}

func TestRootedSource(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.graphql"), []byte("query A { a }"), 0o644))
	private := filepath.Join(base, "private.graphql")
	require.NoError(t, os.WriteFile(private, []byte("type Secret { password: String }"), 0o644))
	require.NoError(t, os.Symlink(private, filepath.Join(dir, "link.graphql")))

	src, err := NewRootedSource(dir, nil)
	require.NoError(t, err)
	l := NewLoader(src)
	ctx := context.Background()

	for _, id := range []string{"sub/a.graphql", "sub/../sub/a.graphql"} {
		doc, err := l.Load(ctx, id)
		require.NoError(t, err, id)
		require.Equal(t, "A", doc.Sections[0].Name)
	}

	for _, id := range []string{
		"../private.graphql",
		private,
		"link.graphql",
		"http://127.0.0.1:8080/x.graphql",
		"file://" + private,
	} {
		_, err := l.Load(ctx, id)
		require.ErrorIs(t, err, ErrDocumentAccess, id)
		require.False(t, errors.Is(err, ErrDocumentNotFound), id)
	}

	_, err = l.Load(ctx, "missing.graphql")
	require.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = NewRootedSource(filepath.Join(base, "nope"), nil)
	require.Error(t, err)
	_, err = NewRootedSource(private, nil)
	require.Error(t, err)
}
