// Package domain defines strongly typed identifiers shared across modules.
// Wrapping uuid.UUID keeps claim, receipt, and contract ids from being
// accidentally interchanged at service boundaries.
package domain

import "github.com/google/uuid"

type (
	ClaimID    uuid.UUID
	ReceiptID  uuid.UUID
	ContractID uuid.UUID
)

func NewClaimID() ClaimID       { return ClaimID(uuid.New()) }
func NewReceiptID() ReceiptID   { return ReceiptID(uuid.New()) }
func NewContractID() ContractID { return ContractID(uuid.New()) }

func (id ClaimID) String() string    { return uuid.UUID(id).String() }
func (id ReceiptID) String() string  { return uuid.UUID(id).String() }
func (id ContractID) String() string { return uuid.UUID(id).String() }

func (id ClaimID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ReceiptID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ContractID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// The id types marshal as canonical uuid strings, not raw bytes.

func (id ClaimID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ReceiptID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id ContractID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ClaimID) UnmarshalText(data []byte) error {
	parsed, err := ParseClaimID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ReceiptID) UnmarshalText(data []byte) error {
	parsed, err := ParseReceiptID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ContractID) UnmarshalText(data []byte) error {
	parsed, err := ParseContractID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func ParseClaimID(s string) (ClaimID, error) {
	u, err := uuid.Parse(s)
	return ClaimID(u), err
}

func ParseReceiptID(s string) (ReceiptID, error) {
	u, err := uuid.Parse(s)
	return ReceiptID(u), err
}

func ParseContractID(s string) (ContractID, error) {
	u, err := uuid.Parse(s)
	return ContractID(u), err
}
