package protocol

// Message is any payload that travels inside an Envelope.
type Message interface {
	Event() EventType
}

// Welcome hands a freshly connected client its server-assigned
// connection id. Sent exactly once, before any other envelope.
type Welcome struct {
	SocketID string `json:"socketId"`
}

func (Welcome) Event() EventType { return EventWelcome }

// RegisterProvider joins the directory as a storage provider. The wallet
// address is optional; without one the provider is routed by its
// connection id and cannot receive settlements.
type RegisterProvider struct {
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

func (RegisterProvider) Event() EventType { return EventRegisterProvider }

// RegisterUser joins as a plain uploading client.
type RegisterUser struct {
	Username string `json:"username"`
}

func (RegisterUser) Event() EventType { return EventRegisterUser }

// GetProviders requests the current directory. The reply is a unicast
// ProviderListUpdate to the requesting connection only.
type GetProviders struct{}

func (GetProviders) Event() EventType { return EventGetProviders }

// SendFile initiates a relay transfer. Size and type are client-declared
// and not verified. When EncryptedData is present it is relayed instead
// of FileData.
type SendFile struct {
	FileData         []byte  `json:"fileData"`
	FileName         string  `json:"fileName"`
	FileSize         int64   `json:"fileSize"`
	FileType         string  `json:"fileType"`
	SenderUsername   string  `json:"senderUsername"`
	Cost             float64 `json:"cost"`
	EncryptedData    []byte  `json:"encryptedData,omitempty"`
	OriginalFileName string  `json:"originalFileName,omitempty"`
}

func (SendFile) Event() EventType { return EventSendFile }

// PaymentSent asks the relay to notify one provider that a settlement
// was made on its behalf. The relay forwards the amount, nothing more.
type PaymentSent struct {
	RecipientSocketID string  `json:"recipientSocketId"`
	Amount            float64 `json:"amount"`
}

func (PaymentSent) Event() EventType { return EventPaymentSent }

// ProviderEntry is one directory row. ID is the wallet address when the
// provider registered with one, otherwise the transient connection id;
// HasWallet tells the two cases apart. Settlement must never target an
// entry with HasWallet == false.
type ProviderEntry struct {
	Username  string `json:"username"`
	ID        string `json:"id"`
	SocketID  string `json:"socketId"`
	HasWallet bool   `json:"hasWallet"`
}

// ProviderListUpdate is the directory snapshot, broadcast on every
// provider registration or departure and unicast on GetProviders.
type ProviderListUpdate struct {
	Providers []ProviderEntry `json:"providers"`
}

func (ProviderListUpdate) Event() EventType { return EventProviderListUpdate }

// FileReceived delivers a relayed transfer to one provider. FileName is
// the per-recipient obfuscated name; OriginalFileName is the sender's.
type FileReceived struct {
	FileData         []byte  `json:"fileData"`
	FileName         string  `json:"fileName"`
	FileSize         int64   `json:"fileSize"`
	FileType         string  `json:"fileType"`
	SenderUsername   string  `json:"senderUsername"`
	Payment          float64 `json:"payment"`
	Timestamp        string  `json:"timestamp"`
	OriginalFileName string  `json:"originalFileName"`
}

func (FileReceived) Event() EventType { return EventFileReceived }

// PaymentReceived notifies a provider of a settlement amount.
type PaymentReceived struct {
	Amount float64 `json:"amount"`
}

func (PaymentReceived) Event() EventType { return EventPaymentReceived }

// UploadSuccess acknowledges a completed fan-out to the sender. The
// count is the number of attempted deliveries, not confirmed receipts.
type UploadSuccess struct {
	RecipientCount int      `json:"recipientCount"`
	Recipients     []string `json:"recipients"`
}

func (UploadSuccess) Event() EventType { return EventUploadSuccess }

// UploadError tells the sender a transfer could not proceed.
type UploadError struct {
	Message string `json:"message"`
}

func (UploadError) Event() EventType { return EventUploadError }
