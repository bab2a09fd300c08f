package tools

import (
	"context"
	"encoding/json"

	"github.com/soyeahso/agentroute/internal/domain"
)

// Builtin returns the demo tool set.
func Builtin() []Tool {
	return []Tool{CompareTwoNumbers(), GetUserLocation(), GetReviews()}
}

// CompareTwoNumbers returns 1 when a > b, -1 when a < b and 0 otherwise.
func CompareTwoNumbers() Tool {
	const name = "compare_two_numbers"
	return &Func{
		ToolName: name,
		Desc:     "比较两个数字a，b的大小。如果a>b返回1，a<b返回-1，a=b返回0",
		Params: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number", "description": "第一个数字"},
				"b": map[string]any{"type": "number", "description": "第二个数字"},
			},
			"required": []string{"a", "b"},
		},
		Fn: func(_ context.Context, _ domain.RunContext, args map[string]any) (string, error) {
			a, err := Float(name, args, "a")
			if err != nil {
				return "", err
			}
			b, err := Float(name, args, "b")
			if err != nil {
				return "", err
			}
			switch {
			case a > b:
				return "1", nil
			case a < b:
				return "-1", nil
			default:
				return "0", nil
			}
		},
	}
}

// GetUserLocation resolves the caller's city from the run context.
func GetUserLocation() Tool {
	return &Func{
		ToolName: "get_user_location",
		Desc:     "根据用户ID获取用户位置",
		Params:   map[string]any{"type": "object", "properties": map[string]any{}},
		Fn: func(_ context.Context, rc domain.RunContext, _ map[string]any) (string, error) {
			if rc.UserID == "1" {
				return "北京", nil
			}
			return "上海", nil
		},
	}
}

var (
	positiveReviews = []string{
		"原来两三岁的小孩也可以不扯女孩裙子啊；原来不整屎尿屁也可以做出让全场大笑的效果啊；原来女角色也可以不穿超短裙高开叉高跟鞋啊；原来男师父女徒弟也可以不暧昧纯师徒情啊；原来一个动画片里正派之间也可以有不同的价值观啊；原来不喊口号不献祭亲朋好友父老乡亲也能表达反战的思想啊。罗小黑你还是太超前了。",
		"瑕不掩瑜。非常好的一点是，一点儿爹味都没有，不judge任何人（妖精），没有任何人（妖精）需要被打败或悔过。这在中国的大型说教重灾区———国漫中已是十分可贵。",
		"“无限虽然爱装逼，但是他没有跟鹿野搞花千骨，此乃一胜；没有跟罗小黑搞黑猫和他的蓝发师尊，此乃二胜；没有和哪吒搞男同，此乃三胜”",
		"我宣布鹿野是我唯一的姐！太帅了！！！工装裤配T恤，低马尾，非传统女性角色，太帅了5555555希望越来越强，早日拳打无限脚踢各大长老！！！ 以及，真是好多场经费爆炸的打斗啊",
	}
	negativeReviews = []string{
		"呃…片方到底懂不懂自己的IP魅力在哪啊！搞什么武器、战争的宏大场面啊，又搞不明白，妥妥露怯！整个剧情就是，稀碎…",
	}
)

// GetReviews returns movie reviews as a JSON array.
func GetReviews() Tool {
	const name = "get_reviews"
	return &Func{
		ToolName: name,
		Desc:     "获取罗小黑电影评论列表。positive 为 true 表示获取正面评论, false 表示获取负面评论",
		Params: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"positive": map[string]any{"type": "boolean", "description": "是否获取正面评论"},
			},
			"required": []string{"positive"},
		},
		Fn: func(_ context.Context, _ domain.RunContext, args map[string]any) (string, error) {
			positive, err := Bool(name, args, "positive")
			if err != nil {
				return "", err
			}
			reviews := negativeReviews
			if positive {
				reviews = positiveReviews
			}
			data, err := json.Marshal(reviews)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}
