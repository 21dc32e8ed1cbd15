// Package models содержит структуры запросов и ответов HTTP API.
package models

import "time"

// UploadItem описывает один загруженный файл пакета. Живёт только в рамках запроса.
type UploadItem struct {
	Filename     string
	DeclaredType string
	Data         []byte
}

// Size возвращает размер файла в байтах.
func (u UploadItem) Size() int64 {
	return int64(len(u.Data))
}

// ItemResult содержит результат обработки одного изображения.
// Заполнены либо поля успеха, либо Error.
type ItemResult struct {
	Filename         string `json:"filename"`
	OriginalSize     int64  `json:"original_size,omitempty"`
	OptimizedSize    int64  `json:"optimized_size,omitempty"`
	CompressionRatio *int   `json:"compression_ratio,omitempty"`
	Format           string `json:"format,omitempty"`
	OriginalFormat   string `json:"original_format,omitempty"`
	AlreadyOptimized bool   `json:"already_optimized,omitempty"`
	UsedOriginal     bool   `json:"used_original,omitempty"`
	Data             string `json:"data,omitempty"`

	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success собирает успешный результат.
func Success(filename string, originalSize, optimizedSize int64, ratio int) ItemResult {
	return ItemResult{
		Filename:         filename,
		OriginalSize:     originalSize,
		OptimizedSize:    optimizedSize,
		CompressionRatio: &ratio,
	}
}

// Failure собирает результат с ошибкой.
func Failure(filename, code, message string) ItemResult {
	return ItemResult{Filename: filename, Error: code, Message: message}
}

// Failed сообщает, завершилась ли обработка ошибкой.
func (r ItemResult) Failed() bool {
	return r.Error != ""
}

// Limits описывает снимок лимитов клиента.
type Limits struct {
	UserType       string    `json:"user_type"`
	BatchLimit     int       `json:"batch_limit"`
	DailyLimit     int       `json:"daily_limit"`
	DailyUsed      int       `json:"daily_used"`
	DailyRemaining int       `json:"daily_remaining"`
	ResetAt        time.Time `json:"reset_at"`
}

// BatchResponse представляет ответ на пакетную обработку.
type BatchResponse struct {
	Success bool          `json:"success"`
	Results []ItemResult  `json:"results"`
	Limits  *Limits       `json:"limits,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"-"`
}

// ErrorResponse — тело ответа с ошибкой уровня запроса.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Limits  any          `json:"limits,omitempty"`
}

// FieldError описывает ошибку поля или файла в ответе 422.
type FieldError struct {
	Field    string `json:"field,omitempty"`
	Filename string `json:"filename,omitempty"`
	Reason   string `json:"reason"`
}

// LoginRequest представляет тело запроса POST /api/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserInfo содержит публичные данные пользователя.
type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

// LoginResponse возвращается при успешном входе.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// MeResponse — ответ GET /api/me.
type MeResponse struct {
	UserInfo
	ExpiresAt time.Time `json:"expires_at"`
}

// ContactMessage представляет тело запроса POST /api/contact.
type ContactMessage struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Subject  string `json:"subject" validate:"max=255"`
	Message  string `json:"message" validate:"required,max=5000"`
	Honeypot string `json:"honeypot"`
}

// ContactSubmission хранит принятое сообщение, которое передаётся транспорту доставки.
type ContactSubmission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactResponse — ответ POST /api/contact.
type ContactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FormatsResponse возвращается обработчиком GET /api/formats.
type FormatsResponse struct {
	Input  []string `json:"input"`
	Output []string `json:"output"`
}

// InternalStatsResponse — ответ GET /api/internal/stats.
type InternalStatsResponse struct {
	Batches         int64 `json:"batches"`
	RejectedBatches int64 `json:"rejected_batches"`
	Images          int64 `json:"images"`
	FailedImages    int64 `json:"failed_images"`
	BytesIn         int64 `json:"bytes_in"`
	BytesOut        int64 `json:"bytes_out"`
	BytesSaved      int64 `json:"bytes_saved"`
	Contacts        int64 `json:"contacts"`
}

// User описывает учётную запись для входа.
type User struct {
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Info возвращает публичные данные пользователя.
func (u User) Info() UserInfo {
	return UserInfo{Username: u.Username, Role: u.Role, Email: u.Email}
}
