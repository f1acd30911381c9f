package server

import "math/rand"

// 四个正交方向
var directions = [4]Position{
	{Row: -1, Col: 0},
	{Row: 1, Col: 0},
	{Row: 0, Col: -1},
	{Row: 0, Col: 1},
}

// PlanPath AI 路径合成统一入口，按角色分派
// attacker: BFS 最短路 + 贪心延长；escaper: 随机步数 + 评分贪心逃跑
func PlanPath(role PlayerRole, self, opponent Position, pathPoints int, obstacles []Position) []Position {
	if role == RoleAttacker {
		return attackerPath(self, opponent, pathPoints, obstacles)
	}
	return escaperPath(self, opponent, pathPoints, obstacles)
}

// attackerPath 朝对手当前位置（固定目标）BFS，不足预算时贪心延长
func attackerPath(self, target Position, pathPoints int, obstacles []Position) []Position {
	path := shortestPath(self, target, obstacles)
	if len(path) > pathPoints {
		path = path[:pathPoints]
	}
	if len(path) == pathPoints {
		return path
	}

	cur := self
	prev := self
	hasPrev := false
	if len(path) > 0 {
		cur = path[len(path)-1]
		hasPrev = true
		if len(path) > 1 {
			prev = path[len(path)-2]
		} else {
			prev = self
		}
	}

	for len(path) < pathPoints {
		next, ok := chooseAttackerExtension(cur, prev, hasPrev, target, obstacles)
		if !ok {
			break
		}
		path = append(path, next)
		prev, hasPrev = cur, true
		cur = next
	}
	return path
}

// chooseAttackerExtension 延长一步：排除回头格，在离目标最近的候选中等概率取一
func chooseAttackerExtension(cur, prev Position, hasPrev bool, target Position, obstacles []Position) (Position, bool) {
	var candidates []Position
	for _, c := range neighbors(cur, obstacles) {
		if hasPrev && c == prev {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return Position{}, false
	}

	best := manhattan(candidates[0], target)
	for _, c := range candidates[1:] {
		if d := manhattan(c, target); d < best {
			best = d
		}
	}
	var bestMoves []Position
	for _, c := range candidates {
		if manhattan(c, target) == best {
			bestMoves = append(bestMoves, c)
		}
	}
	return bestMoves[rand.Intn(len(bestMoves))], true
}

// escaperPath 随机消耗 [1, 预算] 步，逐步评分贪心；刻意不最优，保持可战胜
func escaperPath(self, threat Position, pathPoints int, obstacles []Position) []Position {
	maxSpend := pathPoints
	if maxSpend < 1 {
		maxSpend = 1
	}
	spend := rand.Intn(maxSpend) + 1

	var path []Position
	cur := self
	prev := self
	hasPrev := false

	for step := 0; step < spend; step++ {
		var candidates []Position
		for _, c := range neighbors(cur, obstacles) {
			if hasPrev && c == prev {
				continue
			}
			candidates = append(candidates, c)
		}
		if len(candidates) == 0 {
			break
		}

		scores := make([]float64, len(candidates))
		top := 0.0
		for i, c := range candidates {
			scores[i] = scoreEscaperMove(c, threat)
			if i == 0 || scores[i] > top {
				top = scores[i]
			}
		}
		// 最高分 1.5 以内等概率取一，注入随机性
		var pool []Position
		for i, c := range candidates {
			if scores[i] >= top-1.5 {
				pool = append(pool, c)
			}
		}
		choice := pool[rand.Intn(len(pool))]

		path = append(path, choice)
		prev, hasPrev = cur, true
		cur = choice
	}
	return path
}

// scoreEscaperMove 距威胁越远越好，贴边扣分、居中加分，再加抖动
func scoreEscaperMove(candidate, threat Position) float64 {
	score := float64(manhattan(candidate, threat)) * 10
	if isEdge(candidate) {
		score -= 0.5
	} else {
		score += 0.35
	}
	return score + rand.Float64()
}

// shortestPath BFS 最短路（避开障碍），不含起点；不可达返回空
func shortestPath(from, to Position, obstacles []Position) []Position {
	if from == to {
		return nil
	}
	visited := map[Position]bool{from: true}
	cameFrom := map[Position]Position{}
	queue := []Position{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			break
		}
		for _, next := range neighbors(cur, obstacles) {
			if visited[next] {
				continue
			}
			visited[next] = true
			cameFrom[next] = cur
			queue = append(queue, next)
		}
	}

	if !visited[to] {
		return nil
	}
	var reversed []Position
	for cursor := to; cursor != from; cursor = cameFrom[cursor] {
		reversed = append(reversed, cursor)
	}
	path := make([]Position, len(reversed))
	for i, p := range reversed {
		path[len(reversed)-1-i] = p
	}
	return path
}

// neighbors 合法相邻格：棋盘内且不被障碍占用
func neighbors(p Position, obstacles []Position) []Position {
	var out []Position
	for _, d := range directions {
		next := Position{Row: p.Row + d.Row, Col: p.Col + d.Col}
		if IsValidMove(p, next) && !isObstacle(next, obstacles) {
			out = append(out, next)
		}
	}
	return out
}

func isEdge(p Position) bool {
	return p.Row == gridMin || p.Row == gridMax || p.Col == gridMin || p.Col == gridMax
}
