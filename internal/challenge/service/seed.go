package service

import (
	"codequest/internal/challenge/model"
)

// defaultChallenges is the built-in starter set, used when the store is
// empty and no challenge pack is configured.
func defaultChallenges() []*model.Challenge {
	return []*model.Challenge{
		{
			Title:       "Hello World",
			Description: "Write a program that prints 'Hello, World!' to the console.",
			Type:        model.TypeCoding,
			Difficulty:  model.DifficultyEasy,
			XPReward:    10,
			Coding: &model.CodingSpec{
				Language:    "python",
				StarterCode: "# Write your code here\n",
				Solution:    "print('Hello, World!')",
				TestCases: []model.TestCase{
					{Stdin: "", Expected: "Hello, World!\n"},
				},
			},
		},
		{
			Title:       "Variables in Python",
			Description: "Which of the following is the correct way to create a variable in Python?",
			Type:        model.TypeMultipleChoice,
			Difficulty:  model.DifficultyEasy,
			XPReward:    5,
			Choice: &model.ChoiceSpec{
				Options:       []string{"var x = 5", "x = 5", "int x = 5", "variable x = 5"},
				CorrectAnswer: "x = 5",
			},
		},
		{
			Title:       "Add Two Numbers",
			Description: "Write a function that takes two numbers and returns their sum.",
			Type:        model.TypeCoding,
			Difficulty:  model.DifficultyEasy,
			XPReward:    15,
			Coding: &model.CodingSpec{
				Language:    "python",
				StarterCode: "def add_numbers(a, b):\n    # Write your code here\n    pass\n\n# Test your function\nprint(add_numbers(2, 3))",
				Solution:    "def add_numbers(a, b):\n    return a + b\n\nprint(add_numbers(2, 3))",
				TestCases: []model.TestCase{
					{Stdin: "", Expected: "5\n"},
				},
			},
		},
		{
			Title:       "JavaScript Basics",
			Description: "What does 'console.log()' do in JavaScript?",
			Type:        model.TypeMultipleChoice,
			Difficulty:  model.DifficultyEasy,
			XPReward:    5,
			Choice: &model.ChoiceSpec{
				Options: []string{
					"Creates a new console",
					"Prints output to the console",
					"Logs into the system",
					"Creates a log file",
				},
				CorrectAnswer: "Prints output to the console",
			},
		},
		{
			Title:       "FizzBuzz",
			Description: "Write a program that prints numbers 1 to 15. For multiples of 3, print 'Fizz' instead. For multiples of 5, print 'Buzz'. For multiples of both 3 and 5, print 'FizzBuzz'.",
			Type:        model.TypeCoding,
			Difficulty:  model.DifficultyMedium,
			XPReward:    25,
			Coding: &model.CodingSpec{
				Language:    "python",
				StarterCode: "# Write your FizzBuzz solution here\n",
				Solution:    "for i in range(1, 16):\n    if i % 15 == 0:\n        print('FizzBuzz')\n    elif i % 3 == 0:\n        print('Fizz')\n    elif i % 5 == 0:\n        print('Buzz')\n    else:\n        print(i)",
				TestCases: []model.TestCase{
					{Stdin: "", Expected: "1\n2\nFizz\n4\nBuzz\nFizz\n7\n8\nFizz\nBuzz\n11\nFizz\n13\n14\nFizzBuzz\n"},
				},
			},
		},
	}
}
