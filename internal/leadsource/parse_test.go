package leadsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "голый массив",
			body:      `[{"name":"Иван","phone":"+79123456789"},{"name":"Анна","email":"anna@example.com"}]`,
			wantCount: 2,
		},
		{
			name:      "обёртка leads",
			body:      `{"leads":[{"name":"Иван"}]}`,
			wantCount: 1,
		},
		{
			name:      "обёртка data",
			body:      `{"data":[{"full_name":"Иван Петров","phone_number":"89123456789"}]}`,
			wantCount: 1,
		},
		{
			name:      "обёртка items",
			body:      `{"items":[]}`,
			wantCount: 0,
		},
		{
			name:      "пустое тело не является ошибкой",
			body:      "",
			wantCount: 0,
		},
		{
			name:      "пустой массив",
			body:      `[]`,
			wantCount: 0,
		},
		{
			name:    "не json",
			body:    `not json`,
			wantErr: true,
		},
		{
			name:    "объект без известной обёртки",
			body:    `{"contacts":[{"name":"Иван"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCandidates([]byte(tt.body))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadResponse)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
		})
	}
}

func TestCandidate_SynonymFields(t *testing.T) {
	c := Candidate{FullName: "Иван Петров", PhoneNumber: "89123456789"}
	assert.Equal(t, "Иван Петров", c.ContactName())
	assert.Equal(t, "89123456789", c.ContactPhone())

	// основные поля имеют приоритет над синонимами
	c = Candidate{Name: "Иван", FullName: "другое", Phone: "+7912", PhoneNumber: "8912"}
	assert.Equal(t, "Иван", c.ContactName())
	assert.Equal(t, "+7912", c.ContactPhone())
}
