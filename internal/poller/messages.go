package poller

const (
	messageFeatureRequestedHeader = "機能リクエストが届きました ✨"
	messageFeatureCompletedHeader = "機能が追加されました ✅"

	messageBoardNewPost = "掲示板に新しい投稿があります。"

	messageScheduleRegisteredHeader = "新しい予定が登録されました 📅"
)
