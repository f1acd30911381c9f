package server

import (
	"fmt"
	"hash/fnv"
	"time"
)

// 规则常量：5×5 棋盘，血量 3，障碍最多 3 个
const (
	gridMin      = 0
	gridMax      = 4
	maxObstacles = 3
	initialHP    = 3
)

// PathPoints 当前回合可规划的最大步数：min(4+turn, 10)
func PathPoints(turn int) int {
	if 4+turn > 10 {
		return 10
	}
	return 4 + turn
}

// IsValidMove 仅允许棋盘内的正交单步
func IsValidMove(from, to Position) bool {
	dr := abs(to.Row - from.Row)
	dc := abs(to.Col - from.Col)
	return dr+dc == 1 &&
		to.Row >= gridMin && to.Row <= gridMax &&
		to.Col >= gridMin && to.Col <= gridMax
}

// IsValidPath 路径合法性：不超预算、不踩障碍、逐步正交相邻；空路径恒合法
func IsValidPath(start Position, path []Position, maxPoints int, obstacles []Position) bool {
	if len(path) > maxPoints {
		return false
	}
	cur := start
	for _, next := range path {
		if isObstacle(next, obstacles) {
			return false
		}
		if !IsValidMove(cur, next) {
			return false
		}
		cur = next
	}
	return true
}

// GenerateObstacles 按 (roomID, turn) 确定性生成 ≤3 个障碍，排除双方当前格
// 同一房间同一回合重算结果一致，便于重试与测试复现
func GenerateObstacles(roomID string, turn int, redPos, bluePos Position) []Position {
	var candidates []Position
	for row := gridMin; row <= gridMax; row++ {
		for col := gridMin; col <= gridMax; col++ {
			cell := Position{Row: row, Col: col}
			if cell == redPos || cell == bluePos {
				continue
			}
			candidates = append(candidates, cell)
		}
	}

	next := seededRand(fmt.Sprintf("%s:%d", roomID, turn))
	var picked []Position
	for len(picked) < maxObstacles && len(candidates) > 0 {
		idx := int(next() * float64(len(candidates)))
		picked = append(picked, candidates[idx])
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}
	return picked
}

// CollisionEvent 单次碰撞：发生步、位置、受损方与其剩余血量
type CollisionEvent struct {
	Step         int         `json:"step"`
	Position     Position    `json:"position"`
	EscapeeColor PlayerColor `json:"escapeeColor"`
	NewHP        int         `json:"newHp"`
}

// DetectCollisions 按步重放双方序列（起点前置；短序列停在末格），检出同格与交换碰撞
// 双方被迫同格开局时，若 escaper 规划了路径，则第 0 步的同格事件视为中性、不判碰撞
func DetectCollisions(redPath, bluePath []Position, redStart, blueStart Position, attackerColor PlayerColor, escaperHP int) []CollisionEvent {
	var events []CollisionEvent
	escapeeColor := attackerColor.Opponent()
	escaperPath := bluePath
	if escapeeColor == ColorRed {
		escaperPath = redPath
	}
	ignoreStartTile := redStart == blueStart && len(escaperPath) > 0

	redSeq := append([]Position{redStart}, redPath...)
	blueSeq := append([]Position{blueStart}, bluePath...)
	maxLen := len(redSeq)
	if len(blueSeq) > maxLen {
		maxLen = len(blueSeq)
	}

	currentHP := escaperHP
	for i := 0; i < maxLen; i++ {
		r := redSeq[clampIndex(i, len(redSeq))]
		b := blueSeq[clampIndex(i, len(blueSeq))]

		// 同格碰撞
		if r == b {
			if i == 0 && ignoreStartTile {
				continue
			}
			currentHP = floorZero(currentHP - 1)
			events = append(events, CollisionEvent{Step: i, Position: r, EscapeeColor: escapeeColor, NewHP: currentHP})
			continue
		}

		// 交换碰撞（第 i-1 步与第 i 步之间对穿）
		if i > 0 {
			rPrev := redSeq[clampIndex(i-1, len(redSeq))]
			bPrev := blueSeq[clampIndex(i-1, len(blueSeq))]
			if r == bPrev && b == rPrev {
				currentHP = floorZero(currentHP - 1)
				events = append(events, CollisionEvent{Step: i, Position: r, EscapeeColor: escapeeColor, NewHP: currentHP})
			}
		}
	}
	return events
}

// InitialPositions 开局位置：红 (2,0)，蓝 (2,4)
func InitialPositions() (red, blue Position) {
	return Position{Row: 2, Col: 0}, Position{Row: 2, Col: 4}
}

// CalcAnimationDuration 客户端回放耗时：每步 200ms + 300ms 缓冲
func CalcAnimationDuration(pathLen int) time.Duration {
	return time.Duration(pathLen*200+300) * time.Millisecond
}

func isObstacle(cell Position, obstacles []Position) bool {
	for _, o := range obstacles {
		if o == cell {
			return true
		}
	}
	return false
}

func manhattan(a, b Position) int {
	return abs(a.Row-b.Row) + abs(a.Col-b.Col)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clampIndex(i, length int) int {
	if i > length-1 {
		return length - 1
	}
	return i
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// seededRand FNV-1a 哈希种子 + LCG，返回 [0,1) 伪随机序列
func seededRand(key string) func() float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	seed := h.Sum32()
	return func() float64 {
		seed = seed*1664525 + 1013904223
		return float64(seed) / float64(1<<32)
	}
}
