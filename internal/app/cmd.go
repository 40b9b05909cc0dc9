package app

// Command はアプリケーションの起動モードを表す。
// 1つのバイナリがサブコマンドで各サービスとして起動する。
type Command string

const (
	// CommandAuth はToken Authorityモードで起動することを示す。
	CommandAuth Command = "auth"
	// CommandGateway はAPI Gatewayモードで起動することを示す。
	CommandGateway Command = "gateway"
	// CommandTask はTask Serviceモードで起動することを示す。
	CommandTask Command = "task"
	// CommandFile はFile Serviceモードで起動することを示す。
	CommandFile Command = "file"
	// CommandSearch はSearch Serviceモードで起動することを示す。
	CommandSearch Command = "search"
	// CommandScheduler はScheduler Serviceモードで起動することを示す。
	CommandScheduler Command = "scheduler"
	// CommandNotifier は通知コンシューマモードで起動することを示す。
	CommandNotifier Command = "notifier"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandGatewayを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandGateway
	}

	switch args[0] {
	case "auth":
		return CommandAuth
	case "gateway":
		return CommandGateway
	case "task":
		return CommandTask
	case "file":
		return CommandFile
	case "search":
		return CommandSearch
	case "scheduler":
		return CommandScheduler
	case "notifier":
		return CommandNotifier
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandGateway
	}
}
