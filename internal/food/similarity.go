package food

import "strings"

// nameSimilarity は2つの食品名の類似度を0.0〜1.0で返す。
// 大文字小文字と前後の空白を無視したレーベンシュタイン距離ベースの比較で、
// 統合検索の重複除外に使用する。
func nameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra := []rune(a)
	rb := []rune(b)
	dist := levenshtein(ra, rb)

	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}

	return 1.0 - float64(dist)/float64(longer)
}

// levenshtein は2つの文字列間の編集距離を返す。
// メモリ使用を抑えるため1行ぶんのDPテーブルで計算する。
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr := make([]int, len(b)+1)
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // 削除
				curr[j-1]+1,    // 挿入
				prev[j-1]+cost, // 置換
			)
		}
		prev = curr
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
