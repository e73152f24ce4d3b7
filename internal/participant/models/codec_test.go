package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload_KnownKinds(t *testing.T) {
	addr := &Address{Address1: "1 Main St", City: "Springfield", State: "IL", Country: "US", ZipCode: "62701"}
	payloads := []Payload{
		PersonAcquired{Person: Person{Name: "Alice", SSN: "111-22-3333", Address: addr, IsActive: true}},
		OrganizationAcquired{Organization: Organization{Name: "Acme", EIN: "12-3456789", IsActive: true}},
		ParticipantDeactivated{},
		PersonSSNChanged{SSN: "999-88-7777"},
		PersonHomePhoneChanged{HomePhone: "555-0100"},
	}

	for _, p := range payloads {
		t.Run(string(p.Kind()), func(t *testing.T) {
			kind, body, err := EncodePayload(p)
			require.NoError(t, err)
			assert.Equal(t, p.Kind(), kind)

			decoded, err := DecodePayload(kind, body)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}

func TestDecodePayload_UnknownKind(t *testing.T) {
	_, err := DecodePayload("person-renamed", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodePayload_MalformedBody(t *testing.T) {
	_, err := DecodePayload(KindPersonSSNChanged, []byte(`{"ssn":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "person-ssn-changed")
}

func TestEncodePayload_Nil(t *testing.T) {
	_, _, err := EncodePayload(nil)
	assert.Error(t, err)
}

func TestMarshalEvent_KeepsEnvelopeFields(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 30, 0, 123, time.UTC)
	e := NewEvent("p-1", at, PersonHomePhoneChanged{HomePhone: "555-0101"})
	e.Sequence = 3

	data, err := MarshalEvent(*e)
	require.NoError(t, err)

	got, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "p-1", got.AggregateID)
	assert.Equal(t, int64(3), got.Sequence)
	assert.True(t, at.Equal(got.OccurredAt))
	assert.Equal(t, KindPersonHomePhoneChanged, got.Kind())
}

func TestAddressString(t *testing.T) {
	a := Address{Address1: "1 Main St", Address2: "Apt 2", City: "Springfield", State: "IL", Country: "US", ZipCode: "62701"}
	assert.Equal(t, "1 Main St, Apt 2, Springfield, IL, US, 62701", a.String())
}
