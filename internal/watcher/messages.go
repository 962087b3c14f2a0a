package watcher

const (
	slashCommandVoiceTimeDescription = "今週のボイスチャンネル滞在時間を表示します。"

	messageEphemeralWrongGuild     = ":warning: **このサーバーでは実行できません。**"
	messageEphemeralUnknownCommand = ":warning: **不明なコマンドです。**"
	messageEphemeralNoTotals       = "現在の累計データはありません。"

	messageActivityHeaderFormat = ":loudspeaker: ボイスチャンネル **%s** にメンバーがいます！"

	messageChaseAlertFormat = ":alarm_clock: <@%s> さん、予定は %s までです。残り %d 分、早めに戻ってきてください！"

	messageCorrectedFormat = ":warning: **<@%s> さん、予定が残っているのに10分間戻りませんでした。**\nNotionの予定を実際の退出時刻（%s）に修正しました。"

	messagePraiseFormat = ":tada: **<@%s> さん、予定の学習時間を達成しました！**（超過 %d 分）"

	messageWeeklyReportHeader = "今週のボイスチャンネル滞在時間（日〜土、単位: 時間）"
	messageWeeklyReportEmpty  = "今週の対象ボイスチャンネルの滞在記録はありません。"

	messageVerificationReminder      = ":fire: **本日の学習認証、0時までにNotionへ登録してください！** :fire:"
	messageVerificationMissingFormat = ":bell: %s\n明日（%s）の認証ページが空のままです！確認してください！"
)
