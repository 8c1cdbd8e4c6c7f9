package main

import "github.com/stemsi/proficiency-backend/internal/model"

// Starter banks. Enough for every pool to be non-empty and for an attempt to
// draw the full 15 MCQ items.
var mcqBank = []model.CreateMCQRequest{
	// A1-A2
	{Text: "I _____ strictly forbidden from smoking in this area.", Options: []string{"am", "is", "be", "are"}, Correct: "am", Difficulty: model.DifficultyBeginner},
	{Text: "Where _____ you go last summer holiday?", Options: []string{"did", "do", "were", "was"}, Correct: "did", Difficulty: model.DifficultyBeginner},
	{Text: "She _____ usually _____ breakfast at 7 AM.", Options: []string{"do / eat", "does / eat", "does / eats", "do / eats"}, Correct: "does / eat", Difficulty: model.DifficultyBeginner},
	{Text: "Yesterday, I _____ to the cinema with my friends.", Options: []string{"go", "gone", "went", "was"}, Correct: "went", Difficulty: model.DifficultyBeginner},
	{Text: "This is the _____ book I have ever read.", Options: []string{"good", "better", "best", "most good"}, Correct: "best", Difficulty: model.DifficultyBeginner},

	// B1-B2
	{Text: "If I _____ you, I would accept that offer immediately.", Options: []string{"was", "am", "were", "be"}, Correct: "were", Difficulty: model.DifficultyIntermediate},
	{Text: "He is the man _____ car was stolen yesterday.", Options: []string{"who", "which", "whose", "that"}, Correct: "whose", Difficulty: model.DifficultyIntermediate},
	{Text: "By the time we arrived, the film _____ already _____.", Options: []string{"has / started", "had / started", "was / starting", "did / start"}, Correct: "had / started", Difficulty: model.DifficultyIntermediate},
	{Text: "I look forward to _____ from you soon.", Options: []string{"hear", "hearing", "heard", "be heard"}, Correct: "hearing", Difficulty: model.DifficultyIntermediate},
	{Text: "Despite _____ tired, he continued working.", Options: []string{"he was", "of being", "being", "to be"}, Correct: "being", Difficulty: model.DifficultyIntermediate},
	{Text: "You _____ better see a doctor if the pain persists.", Options: []string{"would", "should", "had", "must"}, Correct: "had", Difficulty: model.DifficultyIntermediate},

	// C1-C2
	{Text: "Not only _____ the deadline, but he also submitted a flawless report.", Options: []string{"he met", "did he meet", "he did meet", "met he"}, Correct: "did he meet", Difficulty: model.DifficultyAdvanced},
	{Text: "The government is considering _____ a new tax on luxury goods.", Options: []string{"to impose", "imposing", "impose", "of imposing"}, Correct: "imposing", Difficulty: model.DifficultyAdvanced},
	{Text: "Scarcely had he entered the room _____ the phone rang.", Options: []string{"when", "than", "after", "while"}, Correct: "when", Difficulty: model.DifficultyAdvanced},
	{Text: "It is high time we _____ measures to protect the environment.", Options: []string{"take", "took", "will take", "have taken"}, Correct: "took", Difficulty: model.DifficultyAdvanced},
	{Text: "This methodology is _____ to yield significant results.", Options: []string{"bound", "likely", "probable", "possible"}, Correct: "bound", Difficulty: model.DifficultyAdvanced},
	{Text: "Had I known about the risks, I _____ participated.", Options: []string{"would not have", "will not have", "would not", "had not"}, Correct: "would not have", Difficulty: model.DifficultyAdvanced},
	{Text: "I'd rather you _____ make so much noise.", Options: []string{"don't", "didn't", "won't", "not"}, Correct: "didn't", Difficulty: model.DifficultyAdvanced},
	{Text: "Under no circumstances _____ allowed to enter.", Options: []string{"are you", "you are", "do you", "you do"}, Correct: "are you", Difficulty: model.DifficultyAdvanced},
	{Text: "Hardly _____ the news when he burst into tears.", Options: []string{"had he heard", "he had heard", "did he hear", "he heard"}, Correct: "had he heard", Difficulty: model.DifficultyAdvanced},
}

var writingBank = []string{
	"Discuss the impact of Artificial Intelligence on future job markets.",
	"Is climate change the greatest threat facing humanity?",
	"Should education be completely free for everyone?",
	"The role of social media in shaping modern democracy.",
	"Describe a significant technological advancement and its effects.",
}

var listeningBank = []model.ListeningScenario{
	{
		Topic:      "Mars Colonization",
		Difficulty: model.DifficultyIntermediate,
		Passage: "As humanity looks towards the stars, Mars has become the primary candidate for colonization. " +
			"However, the challenges are immense. Radiation levels, lack of breathable atmosphere, and extreme cold " +
			"make it a hostile environment. Scientists are proposing terraforming as a long-term solution, " +
			"essentially engineering the planet to support human life.",
		Questions: []model.ListeningQuestion{
			{QID: "L1", Text: "What is the primary candidate for colonization?", Options: []string{"Moon", "Mars", "Venus", "Jupiter"}, Correct: "Mars"},
			{QID: "L2", Text: "What is mentioned as a major challenge?", Options: []string{"Aliens", "Radiation", "Heat", "Gravity"}, Correct: "Radiation"},
			{QID: "L3", Text: "What long-term solution is proposed?", Options: []string{"Terraforming", "Building Domes", "Underground Cities", "Space Stations"}, Correct: "Terraforming"},
			{QID: "L4", Text: "Mars is described as a _____ environment.", Options: []string{"Friendly", "Hostile", "Warm", "Wet"}, Correct: "Hostile"},
			{QID: "L5", Text: "Terraforming means engineering the planet to support...", Options: []string{"Robot life", "Plant life", "Human life", "No life"}, Correct: "Human life"},
		},
	},
	{
		Topic:      "History of the Internet",
		Difficulty: model.DifficultyBeginner,
		Passage: "The Internet started in the 1960s as a way for government researchers to share information. " +
			"Computers in the '60s were large and immobile and in order to make use of information stored in any one " +
			"computer, one had to either travel to the site of the computer or have magnetic tapes sent through the " +
			"conventional postal system.",
		Questions: []model.ListeningQuestion{
			{QID: "L1", Text: "When did the Internet start?", Options: []string{"1980s", "1960s", "1990s", "2000s"}, Correct: "1960s"},
			{QID: "L2", Text: "Who was it originally for?", Options: []string{"Students", "Gamers", "Government researchers", "Businessmen"}, Correct: "Government researchers"},
			{QID: "L3", Text: "Computers in the 60s were...", Options: []string{"Small", "Mobile", "Large and immobile", "Wireless"}, Correct: "Large and immobile"},
			{QID: "L4", Text: "How was data physically shared?", Options: []string{"USB Drives", "Magnetic tapes", "CDs", "Cloud"}, Correct: "Magnetic tapes"},
			{QID: "L5", Text: "To use data, one had to _____ to the site.", Options: []string{"Email", "Call", "Travel", "Fax"}, Correct: "Travel"},
		},
	},
}

var speakingBank = [][]string{
	{"Artificial Intelligence is transforming the world.", "Sustainability is key to our future.", "Critical thinking is an essential skill."},
	{"Global warming requires urgent action.", "Education is the most powerful weapon.", "Technology brings people together."},
	{"Learning a new language opens many doors.", "Healthy habits lead to a happier life.", "Creativity is intelligence having fun."},
}
