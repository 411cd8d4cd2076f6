package constants

const (
	AppName = "quantum-wallet"

	KeychainFile = "keychain.json"
	SettingsDB   = "settings.db"
	DeviceKey    = "device.key"

	FilePerm      = 0o600
	DirectoryPerm = 0o700

	// AAD for the keychain envelope (must match on decrypt).
	KeychainAAD = "quantumwallet:keychain:v1"

	// Fixed secure storage keys.
	KeyPrivateKey    = "private_key"
	KeyWalletAddress = "wallet_address"
	KeyUserPIN       = "user_pin"

	// Ordinary (non-secure) settings keys.
	SettingSelectedWalletAddress  = "selected_wallet_address"
	SettingHasCompletedOnboarding = "has_completed_onboarding"

	// Standard Ethereum BIP44 path for the first account.
	DefaultDerivationPath = "m/44'/60'/0'/0/0"

	EtherDecimals     = 18
	BalanceMaxFrac    = 4
	PINLength         = 6
	MnemonicWordCount = 12
	MnemonicEntropy   = 128
)
