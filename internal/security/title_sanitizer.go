// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TitleSanitizer はタスクタイトルからHTMLを取り除き、プレーンテキストとして
// 保存できる形に正規化する。bluemondayのStrictPolicyを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TitleSanitizerService はタスクタイトルのサニタイズ機能のインターフェースを定義する。
type TitleSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// script, styleタグは中身ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// titleSanitizer はTitleSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type titleSanitizer struct {
	policy *bluemonday.Policy
}

// maxSanitizePasses はエンティティの多重エンコードを展開する最大回数。
const maxSanitizePasses = 8

// 展開しきれなかった場合にマークアップとして解釈され得る文字を除去する。
var markupStripper = strings.NewReplacer("<", "", ">", "", "&", "")

// NewTitleSanitizer はTitleSanitizerServiceの新しいインスタンスを生成する。
func NewTitleSanitizer() TitleSanitizerService {
	return &titleSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタイトルをプレーンテキストに変換する。
// StrictPolicyは & < > をエンティティ化するため、テキストへ戻した結果を再度ポリシーに通し、
// 変化しなくなるまで繰り返す。&lt;script&gt; のようにエンコードされたタグもここで除去される。
func (s *titleSanitizer) Sanitize(raw string) string {
	current := strings.ReplaceAll(raw, "\x00", "")
	for range maxSanitizePasses {
		next := html.UnescapeString(s.policy.Sanitize(current))
		if next == current {
			return strings.TrimSpace(current)
		}
		current = next
	}
	// 収束しない入力は記号を落としてプレーンテキストに固定する
	return strings.TrimSpace(markupStripper.Replace(current))
}
