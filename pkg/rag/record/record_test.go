package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "full listing",
			raw: "Event: Rooftop Jazz\nDate: Sat 8pm\nLocation: Brooklyn\nCost: $25\n" +
				"Description: Live trio on the roof\nSource: https://example.com/jazz",
			want: Event{
				Title:       "Rooftop Jazz",
				Date:        "Sat 8pm",
				Location:    "Brooklyn",
				Cost:        "$25",
				Description: "Live trio on the roof",
				URL:         "https://example.com/jazz",
			},
		},
		{
			name: "title only",
			raw:  "Event: Open Mic",
			want: Event{
				Title:       "Open Mic",
				Date:        DefaultDate,
				Location:    DefaultLocation,
				Cost:        DefaultCost,
				Description: DefaultDescription,
				URL:         DefaultURL,
			},
		},
		{
			name: "no recognizable lines",
			raw:  "just some prose without fields",
			want: Event{
				Title:    DefaultTitle,
				Date:     DefaultDate,
				Location: DefaultLocation,
				Cost:     DefaultCost,
				URL:      DefaultURL,
			},
		},
		{
			name: "value keeps later separators",
			raw:  "Event: Talk\nDescription: Topic: distributed systems",
			want: Event{
				Title:       "Talk",
				Date:        DefaultDate,
				Location:    DefaultLocation,
				Cost:        DefaultCost,
				Description: "Topic: distributed systems",
				URL:         DefaultURL,
			},
		},
		{
			name: "whitespace trimmed and empty value falls back",
			raw:  "  Event :   Board Games Night  \nCost: ",
			want: Event{
				Title:    "Board Games Night",
				Date:     DefaultDate,
				Location: DefaultLocation,
				Cost:     DefaultCost,
				URL:      DefaultURL,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestParseDuplicateKeys(t *testing.T) {
	raw := "Event: First\nEvent: Second"

	assert.Equal(t, "Second", NewParser(LastWins).Parse(raw).Title)
	assert.Equal(t, "First", NewParser(FirstWins).Parse(raw).Title)
	assert.Equal(t, "Second", NewParser("").Parse(raw).Title)
}

func TestParseIsIdempotent(t *testing.T) {
	raw := "Event: Salsa Social\nDate: Friday\nCost: $10"
	assert.Equal(t, Parse(raw), Parse(raw))
}

func TestIsItem(t *testing.T) {
	assert.True(t, IsItem("Event: Pottery Class\nCost: $40"))
	assert.True(t, IsItem("Date: Sunday\nEvent:Hike"))
	assert.False(t, IsItem("Venue guide: where to park downtown"))
	assert.False(t, IsItem("The Event of the year"))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("Event: A")
	assert.Equal(t, a, Fingerprint("Event: A"))
	assert.NotEqual(t, a, Fingerprint("Event: A "))
	assert.Len(t, a, 64)
}
