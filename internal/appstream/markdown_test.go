package appstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFromMarkdown checks paragraphs, lists and inline flattening.
func TestFromMarkdown(t *testing.T) {
	t.Parallel()

	description := FromMarkdown("# Changes\n\nThis release *fixes*\nseveral bugs.\n\n * Fix `crash` on resume\n * Improve [battery](https://example.com) life\n   * nested detail\n\n1. First\n2. Second\n")

	require.Equal(t, "description", description.Name)
	require.Len(t, description.Children, 4)

	require.Equal(t, "p", description.Children[0].Name)
	require.Equal(t, "Changes", description.Children[0].Text)
	require.Equal(t, "This release fixes several bugs.", description.Children[1].Text)

	bullets := description.Children[2]
	require.Equal(t, "ul", bullets.Name)
	require.Equal(t, []string{"Fix crash on resume", "Improve battery life", "nested detail"}, texts(bullets.FindAll("li")))

	ordered := description.Children[3]
	require.Equal(t, "ol", ordered.Name)
	require.Equal(t, []string{"First", "Second"}, texts(ordered.FindAll("li")))
}

// TestMarshalParse checks documents survive encoding with escaping.
func TestMarshalParse(t *testing.T) {
	t.Parallel()

	root := NewElement("component")
	root.Set("type", "firmware")
	root.AddText("name", "Fish & <Chips>")
	root.SubElement("empty")

	data, err := Marshal(root)
	require.NoError(t, err)
	require.Contains(t, string(data), "Fish &amp; &lt;Chips&gt;")

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "Fish & <Chips>", parsed.Find("name").Text)
	require.NotNil(t, parsed.Find("empty"))

	_, err = Parse([]byte("   "))
	require.Error(t, err)
}
