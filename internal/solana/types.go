package solana

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// ParsedTransaction represents a transaction fetched with jsonParsed encoding.
type ParsedTransaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *ParsedMeta
}

// ParsedMeta contains transaction metadata with decoded inner instructions.
type ParsedMeta struct {
	Err               interface{}
	InnerInstructions []InnerInstructionSet
}

// Failed reports whether on-chain execution recorded an error.
func (m *ParsedMeta) Failed() bool {
	return m.Err != nil
}

// InnerInstructionSet holds the inner instructions emitted by one
// top-level instruction.
type InnerInstructionSet struct {
	Index        int
	Instructions []ParsedInstruction
}

// ParsedInstruction is a single instruction decoded by the RPC node.
// Parsed is nil for instructions the node could not decode.
type ParsedInstruction struct {
	Program   string
	ProgramID string
	Parsed    *ParsedInstructionDetail
}

// ParsedInstructionDetail is the decoded form of an SPL instruction.
type ParsedInstructionDetail struct {
	Type string
	Info ParsedInstructionInfo
}

// ParsedInstructionInfo carries the fields of burn-style instructions.
// Amount is set for "burn"; TokenAmount for "burnChecked".
type ParsedInstructionInfo struct {
	Account     string
	Mint        string
	Authority   string
	Amount      string
	TokenAmount *TokenAmount
}

// TokenAmount is the checked-instruction amount with decimals attached.
type TokenAmount struct {
	Amount   string
	Decimals int
}

// MemcmpFilter matches account data bytes at a fixed offset.
type MemcmpFilter struct {
	Offset int
	Bytes  string // base58-encoded comparison bytes
}

// ProgramAccount is one entry from getProgramAccounts.
type ProgramAccount struct {
	Pubkey string
	Data   string // base64-encoded account data
	Owner  string
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
	RentEpoch  uint64
}
