package tickets

import (
	"errors"
	"regexp"

	"github.com/google/uuid"
)

// ErrNoTicketCode indicates the scanned payload carried no ticket UUID.
var ErrNoTicketCode = errors.New("no ticket code in payload")

// uuidV4Pattern matches a version-4 UUID anywhere in the decoded text, which
// covers the three accepted QR payload shapes: a raw UUID, a UUID embedded in
// a URL, and a {"uuid": "..."} JSON object.
var uuidV4Pattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}`)

// ExtractTicketID pulls the ticket UUID out of a scanned QR payload or a
// manually typed code. Manual entry funnels through the same extraction so
// both paths reach identical validation.
func ExtractTicketID(payload string) (uuid.UUID, error) {
	match := uuidV4Pattern.FindString(payload)
	if match == "" {
		return uuid.Nil, ErrNoTicketCode
	}
	id, err := uuid.Parse(match)
	if err != nil {
		return uuid.Nil, ErrNoTicketCode
	}
	return id, nil
}
