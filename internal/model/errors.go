// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, food, nutrition, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeFoodNotFound        = "FOOD_NOT_FOUND"
	ErrCodeEntryNotFound       = "ENTRY_NOT_FOUND"
	ErrCodeWeightEntryNotFound = "WEIGHT_ENTRY_NOT_FOUND"
	ErrCodeInvalidMealType     = "INVALID_MEAL_TYPE"
	ErrCodeInvalidDate         = "INVALID_DATE"
	ErrCodeInvalidGoals        = "INVALID_GOALS"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodePermissionDenied    = "PERMISSION_DENIED"
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeIncompleteProfile   = "INCOMPLETE_PROFILE"
	ErrCodeBarcodeNotFound     = "BARCODE_NOT_FOUND"
	ErrCodeUSDAUnavailable     = "USDA_UNAVAILABLE"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewFoodNotFoundError は食品未検出エラーを生成する。
func NewFoodNotFoundError(foodID string) *APIError {
	return &APIError{
		Code:     ErrCodeFoodNotFound,
		Message:  fmt.Sprintf("指定された食品が見つかりません: %s", foodID),
		Category: "food",
		Action:   "食品IDを確認してください。",
	}
}

// NewEntryNotFoundError は食事記録未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された食事記録が見つかりません: %s", entryID),
		Category: "nutrition",
		Action:   "記録IDを確認してください。",
	}
}

// NewWeightEntryNotFoundError は体重記録未検出エラーを生成する。
func NewWeightEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeWeightEntryNotFound,
		Message:  fmt.Sprintf("指定された体重記録が見つかりません: %s", entryID),
		Category: "nutrition",
		Action:   "記録IDを確認してください。",
	}
}

// NewInvalidMealTypeError は無効な食事区分エラーを生成する。
func NewInvalidMealTypeError(mealType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMealType,
		Message:  fmt.Sprintf("無効な食事区分です: %s", mealType),
		Category: "validation",
		Action:   "食事区分には breakfast、lunch、dinner、snack のいずれかを指定してください。",
	}
}

// NewInvalidDateError は無効な日付エラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", value),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewInvalidGoalsError は無効な栄養目標エラーを生成する。
func NewInvalidGoalsError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGoals,
		Message:  fmt.Sprintf("無効な栄養目標です: %s", reason),
		Category: "validation",
		Action:   "各項目を許容範囲内の値で指定してください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewPermissionDeniedError は権限エラーを生成する。
// 他ユーザーのリソースへのアクセスを拒否する際に使用する。
func NewPermissionDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が作成したデータに対してのみ操作できます。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// メールアドレス不存在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewIncompleteProfileError はプロフィール不足エラーを生成する。
// 推奨栄養目標の計算に必要な身体情報が欠けている場合に使用する。
func NewIncompleteProfileError() *APIError {
	return &APIError{
		Code:     ErrCodeIncompleteProfile,
		Message:  "推奨目標の計算に必要なプロフィール情報（体重・身長・生年月日・性別・活動レベル）が不足しています。",
		Category: "validation",
		Action:   "プロフィールを更新してから再度お試しください。",
	}
}

// NewBarcodeNotFoundError はバーコード未検出エラーを生成する。
func NewBarcodeNotFoundError(barcode string) *APIError {
	return &APIError{
		Code:     ErrCodeBarcodeNotFound,
		Message:  fmt.Sprintf("バーコードに一致する食品が見つかりません: %s", barcode),
		Category: "food",
		Action:   "バーコードを確認するか、食品を手動で登録してください。",
	}
}

// NewUSDAUnavailableError はUSDA APIの呼び出し失敗エラーを生成する。
func NewUSDAUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUSDAUnavailable,
		Message:  "食品データベース（USDA）への接続に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
