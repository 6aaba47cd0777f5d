package arbitrum

// darkpoolABI is the Solidity ABI of the darkpool contract's callable
// surface, transcribed directly from arbitrum-client/src/abi.rs's abigen!
// invocation. Event signatures aren't declared there (abi.rs only lists
// the contract's functions) -- the Merkle/nullifier event topics this
// package watches for are named to match the conventional darkpool
// contract shape and documented next to their selectors in events.go.
const darkpoolABI = `[
	{"type":"function","name":"isNullifierSpent","stateMutability":"view",
	 "inputs":[{"name":"nullifier","type":"bytes"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getRoot","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"rootInHistory","stateMutability":"view",
	 "inputs":[{"name":"root","type":"bytes"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"newWallet","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"wallet_blinder_share","type":"bytes"},
		{"name":"proof","type":"bytes"},
		{"name":"valid_wallet_create_statement_bytes","type":"bytes"}
	 ],
	 "outputs":[]},
	{"type":"function","name":"updateWallet","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"wallet_blinder_share","type":"bytes"},
		{"name":"proof","type":"bytes"},
		{"name":"valid_wallet_update_statement_bytes","type":"bytes"},
		{"name":"public_inputs_signature","type":"bytes"}
	 ],
	 "outputs":[]},
	{"type":"function","name":"processMatchSettle","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"party_0_match_payload","type":"bytes"},
		{"name":"party_0_valid_commitments_proof","type":"bytes"},
		{"name":"party_0_valid_reblind_proof","type":"bytes"},
		{"name":"party_1_match_payload","type":"bytes"},
		{"name":"party_1_valid_commitments_proof","type":"bytes"},
		{"name":"party_1_valid_reblind_proof","type":"bytes"},
		{"name":"valid_match_settle_proof","type":"bytes"},
		{"name":"valid_match_settle_statement_bytes","type":"bytes"}
	 ],
	 "outputs":[]}
]`
