package tickets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTicketID(t *testing.T) {
	const raw = "a3bb189e-8bf9-4888-9912-ace4e6543002"

	t.Run("bare uuid", func(t *testing.T) {
		id, err := ExtractTicketID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	})

	t.Run("uppercase uuid", func(t *testing.T) {
		id, err := ExtractTicketID("A3BB189E-8BF9-4888-9912-ACE4E6543002")
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	})

	t.Run("uuid embedded in url", func(t *testing.T) {
		id, err := ExtractTicketID("https://retiro.example.cl/tickets/" + raw + "/estado/")
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	})

	t.Run("uuid embedded in json payload", func(t *testing.T) {
		id, err := ExtractTicketID(`{"uuid": "` + raw + `", "v": 1}`)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	})

	t.Run("rejects payload without uuid", func(t *testing.T) {
		_, err := ExtractTicketID("CAJA-07")
		assert.ErrorIs(t, err, ErrNoTicketCode)
	})

	t.Run("rejects non-v4 uuid", func(t *testing.T) {
		_, err := ExtractTicketID("a3bb189e-8bf9-1888-9912-ace4e6543002")
		assert.ErrorIs(t, err, ErrNoTicketCode)
	})
}
